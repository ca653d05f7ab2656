package github

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/normalisers/markdown"
)

// ProbeRepo fetches the first present file of every path group from the
// repository's default branch.
func ProbeRepo(
	ctx context.Context, client *Client, repo *gh.Repository, groups [][]string,
) (*domain.FetchResult, error) {
	owner := repo.GetOwner().GetLogin()
	name := repo.GetName()
	branch := repo.GetDefaultBranch()
	result := &domain.FetchResult{}

	for _, group := range groups {
		for _, path := range group {
			if isBinaryExtension(path) {
				result.Skip(fileID(owner, name, path), "binary file")
				break
			}

			file, found, err := client.GetFile(ctx, owner, name, path, branch)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				result.Skip(fileID(owner, name, path), err.Error())
				break
			}
			if !found {
				continue
			}

			doc, reason := fileDocument(repo, file)
			if reason != "" {
				result.Skip(fileID(owner, name, path), reason)
			} else {
				result.Documents = append(result.Documents, doc)
			}
			break
		}
	}

	return result, nil
}

// fileDocument converts a fetched file to a Document. A non-empty reason
// means the file was skipped.
func fileDocument(repo *gh.Repository, file *gh.RepositoryContent) (domain.Document, string) {
	content, err := file.GetContent()
	if err != nil {
		return domain.Document{}, fmt.Sprintf("decode content: %v", err)
	}
	if !utf8.ValidString(content) || strings.ContainsRune(content, 0) {
		return domain.Document{}, "binary content"
	}
	content = strings.TrimSpace(content)
	if len(content) < MinContentLength {
		return domain.Document{}, "content too short"
	}

	owner := repo.GetOwner().GetLogin()
	name := repo.GetName()
	path := file.GetPath()

	if markdown.IsMarkdown(path) {
		content = markdown.Strip(content)
		if content == "" {
			return domain.Document{}, "empty content"
		}
	}

	metadata := map[string]any{
		"github.repository":     repo.GetFullName(),
		"github.path":           path,
		"github.sha":            file.GetSHA(),
		"github.size":           file.GetSize(),
		"github.default_branch": repo.GetDefaultBranch(),
		"github.mime_type":      detectFileMIMEType(path),
	}
	if lang := repo.GetLanguage(); lang != "" {
		metadata["github.language"] = lang
	}

	sourceURL := file.GetHTMLURL()
	if sourceURL == "" && repo.GetHTMLURL() != "" {
		sourceURL = fmt.Sprintf("%s/blob/%s/%s", repo.GetHTMLURL(), repo.GetDefaultBranch(), path)
	}

	return domain.Document{
		ExternalID:   fileID(owner, name, path),
		Title:        name + " - " + path,
		Content:      content,
		SourceURL:    sourceURL,
		DocumentType: domain.DocumentTypeFile,
		Metadata:     metadata,
		UpdatedAt:    lastChanged(repo).UTC(),
	}, ""
}

// fileID is the stable external id of a repository file.
func fileID(owner, repo, path string) string {
	return owner + "/" + repo + "/" + path
}

// extMIMETypes maps file extensions to MIME types for common types not in Go's registry.
var extMIMETypes = map[string]string{
	".md": "text/markdown", ".markdown": "text/markdown",
	".rst": "text/x-rst", ".adoc": "text/asciidoc",
	".yaml": "text/yaml", ".yml": "text/yaml", ".toml": "text/toml",
}

// detectFileMIMEType determines the MIME type from file extension.
func detectFileMIMEType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "text/plain"
	}

	if t, ok := extMIMETypes[strings.ToLower(ext)]; ok {
		return t
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		// Strip charset and other parameters.
		if idx := strings.Index(mimeType, ";"); idx != -1 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
		return mimeType
	}

	return "text/plain"
}

// isBinaryExtension checks if a file extension indicates a binary file.
func isBinaryExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".dll", ".so", ".dylib",
		".zip", ".tar", ".gz", ".bz2", ".7z",
		".png", ".jpg", ".jpeg", ".gif", ".ico", ".webp",
		".pdf", ".doc", ".docx", ".xls", ".xlsx",
		".mp3", ".mp4", ".avi", ".mov",
		".bin", ".dat", ".db", ".sqlite":
		return true
	}
	return false
}
