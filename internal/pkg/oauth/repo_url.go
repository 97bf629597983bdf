package oauth

import (
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidRepoURL = errors.New("invalid repository url")

// RepoRef 仓库地址解析结果
type RepoRef struct {
	Owner string
	Name  string
	URL   string
}

// ParseRepoURL 支持 https://host/owner/repo(.git) 和 git@host:owner/repo.git
func ParseRepoURL(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, ErrInvalidRepoURL
	}

	var path string
	switch {
	case strings.HasPrefix(raw, "git@"):
		i := strings.Index(raw, ":")
		if i < 0 {
			return RepoRef{}, ErrInvalidRepoURL
		}
		path = raw[i+1:]
	case strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://"):
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return RepoRef{}, ErrInvalidRepoURL
		}
		path = u.Path
	default:
		return RepoRef{}, ErrInvalidRepoURL
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, ErrInvalidRepoURL
	}

	return RepoRef{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
		URL:   raw,
	}, nil
}
