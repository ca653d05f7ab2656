package confluence

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	spacePath  = "/wiki/rest/api/space"
	searchPath = "/wiki/rest/api/content/search"

	contentExpand = "body.storage,version,history,space"
)

type links struct {
	Next    string `json:"next"`
	Base    string `json:"base"`
	Context string `json:"context"`
	WebUI   string `json:"webui"`
}

type space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// contentList keeps results raw so one malformed page does not sink the
// whole response.
type contentList struct {
	Results []json.RawMessage `json:"results"`
	Links   links             `json:"_links"`
}

type page struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Space *space `json:"space"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		Number int       `json:"number"`
		When   time.Time `json:"when"`
	} `json:"version"`
	History struct {
		CreatedDate time.Time `json:"createdDate"`
		CreatedBy   struct {
			DisplayName string `json:"displayName"`
		} `json:"createdBy"`
	} `json:"history"`
	Links links `json:"_links"`
}

// nextLink returns the continuation link as a path on the site root.
// Confluence returns next links relative to its context path ("/wiki").
func nextLink(l links) string {
	if l.Next == "" {
		return ""
	}
	if l.Context != "" && !strings.HasPrefix(l.Next, l.Context+"/") {
		return l.Context + l.Next
	}
	return l.Next
}
