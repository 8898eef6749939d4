package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// The wire contract between devices is a single URL:
// <origin>/mobile-record?sessionId=<id>[&userId=<ownerId>].
const (
	scanPath       = "/mobile-record"
	paramSessionID = "sessionId"
	paramUserID    = "userId"
)

// BuildScanURL embeds the session id (and owner id, when present) into the
// URL the sending device opens.
func BuildScanURL(base, sessionID, ownerID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id is required")
	}

	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q must be absolute", base)
	}

	u.Path = u.Path + scanPath
	q := url.Values{}
	q.Set(paramSessionID, sessionID)
	if ownerID != "" {
		q.Set(paramUserID, ownerID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseScanURL extracts the session id (required) and owner id (optional)
// from a scanned hand-off URL.
func ParseScanURL(raw string) (sessionID, ownerID string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse hand-off url: %w", err)
	}
	return parseScanQuery(u.Query())
}

func parseScanQuery(q url.Values) (sessionID, ownerID string, err error) {
	sessionID = strings.TrimSpace(q.Get(paramSessionID))
	if sessionID == "" {
		return "", "", errors.New("sessionId query parameter is required")
	}
	return sessionID, strings.TrimSpace(q.Get(paramUserID)), nil
}
