package view

// CardView is template data for one story card in the grid.
type CardView struct {
	ID           string
	Title        string
	URL          string
	Domain       string
	Points       string
	Age          string
	CommentsText string
	CommentsURL  string
	Tag          string
	FaviconURL   string
	Rank         int
	IsSelf       bool
	WantsThumb   bool
}

// GridData is template data for the grid page.
type GridData struct {
	Cards   []CardView
	MoreURL string
}

// ReaderData is template data for the split reader page.
type ReaderData struct {
	Title       string
	ArticleURL  string
	ArticleSrc  string
	CommentsURL string
}
