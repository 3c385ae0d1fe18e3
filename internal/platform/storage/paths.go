package storage

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// DocumentPath is the archive object key for a customer file:
// offices/{office}/customers/{account}/{kind}/{id}/{file}.
func DocumentPath(officeID, accountNumber int, kind string, id int, fileName string) (string, error) {
	if officeID <= 0 || accountNumber <= 0 || id <= 0 {
		return "", fmt.Errorf("storage: office, account and document id must be positive")
	}
	kind, err := validateSegment("kind", kind)
	if err != nil {
		return "", err
	}
	name, err := validateFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(accountPrefix(officeID, accountNumber), kind, strconv.Itoa(id), name), nil
}

// FileNameFromURL takes the last path segment of a remote file URL, falling back to
// "{id}.pdf" when the URL has none.
func FileNameFromURL(rawURL string, id int) string {
	rawURL, _, _ = strings.Cut(rawURL, "?")
	name := path.Base(strings.TrimSpace(rawURL))
	if _, err := validateFileName(name); err != nil || name == "." || !strings.Contains(name, ".") {
		return strconv.Itoa(id) + ".pdf"
	}
	return name
}

func accountPrefix(officeID, accountNumber int) string {
	return fmt.Sprintf("offices/%d/customers/%d", officeID, accountNumber)
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") || strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	return validateSegment("file name", value)
}
