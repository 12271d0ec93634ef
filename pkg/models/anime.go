package models

// Anime identifies one catalog title by its provider slug.
type Anime struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// Episode represents a single playable episode of a title.
type Episode struct {
	Number  int    `json:"episode"`
	Session string `json:"session"`
}
