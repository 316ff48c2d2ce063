package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks an [Entry] for required fields.
//
// Rules:
//   - Title must not be blank.
//   - URL and ImageURL, when set, must be absolute http(s) URLs.
func Validate(e Entry) error {
	var errs []error

	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, errors.New("title must not be empty"))
	}
	if err := checkURL("url", e.URL); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("image_url", e.ImageURL); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q is not an absolute http(s) URL", field, raw)
	}
	return nil
}
