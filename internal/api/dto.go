package api

import (
	"github.com/starford/itemdesk/internal/itemstore"
)

// ItemRequest is the body of POST /items and PUT /items/{id}.
type ItemRequest = itemstore.Fields

// ItemListResponse is one page of GET /items.
type ItemListResponse = itemstore.Page
