package api

import (
	"github.com/starford/outliner/internal/docservice"
	"github.com/starford/outliner/internal/index"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/session"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Name  string `json:"name" example:"work/plan" validate:"required"`
	Title string `json:"title,omitempty" example:"Q3 plan"`
}

// RenameDocumentRequest is the request body for renaming a document.
type RenameDocumentRequest struct {
	Name string `json:"name" example:"archive/plan" validate:"required"`
}

// DocumentRow is a library listing entry (aliased from the index layer).
type DocumentRow = index.DocumentRow

// DocumentListResponse wraps the library listing.
type DocumentListResponse struct {
	Documents []DocumentRow `json:"documents" validate:"required"`
	Total     int           `json:"total" example:"3" validate:"required"`
}

// DocumentResponse is the stored form of one document.
type DocumentResponse struct {
	Name     string           `json:"name" example:"inbox" validate:"required"`
	Document *models.Document `json:"document" validate:"required"`
}

// DocumentView is the rendered form of one document (aliased from the domain layer).
type DocumentView = docservice.DocumentView

// Command is a single outline command (aliased from the session layer).
type Command = session.Command

// CommandResult reports what a command did (aliased from the session layer).
type CommandResult = session.Result

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// TagHit is a node carrying a tag.
type TagHit = index.TagHit

// TagResponse wraps the nodes carrying one tag.
type TagResponse struct {
	Tag   string   `json:"tag" example:"errand" validate:"required"`
	Nodes []TagHit `json:"nodes" validate:"required"`
}

// TagsResponse maps every tag to its node count.
type TagsResponse struct {
	Tags map[string]int `json:"tags" validate:"required"`
}
