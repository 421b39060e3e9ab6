package controller

import "github.com/bassista/go_scrapbook/internal/store"

var knownDocuments = []string{
	store.PathTimeline,
	store.PathBooks,
	store.PathNotes,
	store.PathBookContent,
	store.PathMapLocations,
}
