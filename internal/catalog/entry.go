// Package catalog holds the per-user entity catalogs that transcripts are
// matched against.
//
// Users provide catalogs as CSV uploads ([ParseCSV]); operators can also
// provision them from YAML files ([LoadCatalogFile], [LoadDir]) that are
// reloaded when they change ([DirWatcher]). A user without a catalog simply
// has nothing to match.
//
// All store operations are safe for concurrent use.
package catalog

// Entry is one catalog item. The matcher reads Title; the remaining fields
// are carried into the response.
type Entry struct {
	// ID is a unique identifier within the user's catalog. Generated when
	// empty on insert.
	ID string `yaml:"id" json:"id"`

	// Title is the name that spoken text is matched against.
	Title string `yaml:"title" json:"title"`

	// Description is a short summary shown with a match.
	Description string `yaml:"description" json:"description"`

	// URL links to more information about the entry.
	URL string `yaml:"url" json:"url"`

	// ImageURL is an optional picture for the entry.
	ImageURL string `yaml:"image_url,omitempty" json:"image_url,omitempty"`
}
