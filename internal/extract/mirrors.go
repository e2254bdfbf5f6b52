package extract

import (
	"fmt"
	"net/url"
	"strings"
)

// MirrorHosts are alternate front-end hosts serving YouTube content, tried in
// declared order when the primary host refuses the download.
var MirrorHosts = []string{
	"yewtu.be",
	"inv.nadeko.net",
	"invidious.nerdvpn.de",
}

var youtubeHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

func IsYouTubeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := youtubeHosts[strings.ToLower(u.Hostname())]
	return ok
}

// RewriteHost swaps the URL host for a mirror, preserving path and query.
// Short youtu.be links are expanded to the /watch form mirrors understand.
func RewriteHost(rawURL, mirror string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	if _, ok := youtubeHosts[strings.ToLower(u.Hostname())]; !ok {
		return "", fmt.Errorf("host %q has no known mirrors", u.Hostname())
	}

	if strings.EqualFold(u.Hostname(), "youtu.be") {
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", fmt.Errorf("short link %q carries no video id", rawURL)
		}
		query := u.Query()
		query.Set("v", id)
		u.Path = "/watch"
		u.RawQuery = query.Encode()
	}

	u.Scheme = "https"
	u.Host = mirror
	return u.String(), nil
}

// VideoID extracts the YouTube video id from watch, short-link, and shorts
// URL shapes.
func VideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	if _, ok := youtubeHosts[host]; !ok {
		return "", fmt.Errorf("host %q is not a known video host", u.Hostname())
	}

	if host == "youtu.be" {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("short link %q carries no video id", rawURL)
	}

	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}

	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if strings.HasPrefix(u.Path, prefix) {
			if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); id != "" {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf("no video id in %q", rawURL)
}
