package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/oshokin/autohost-updater/internal/domain/spring"
	"github.com/oshokin/autohost-updater/internal/download"
)

// latestPointerFilename is the per-branch file naming the newest version.
const latestPointerFilename = "LATEST"

// listingShape matches one directory entry of a buildbot index page. The
// link target and the link text repeat the directory name, which filters
// out sorting links and parent-directory rows.
var listingShape = regexp.MustCompile(`href="([^"/]+)/">([^<]+)/<`)

// Resolver answers availability questions against one buildbot instance.
type Resolver struct {
	// downloader performs the index and pointer fetches.
	downloader *download.Downloader
	// buildbotURL is the base URL with branch directories below it.
	buildbotURL string
	// arch is the architecture tag whose packages are checked.
	arch string
}

// NewResolver returns a Resolver bound to a buildbot and an architecture.
func NewResolver(downloader *download.Downloader, buildbotURL, arch string) *Resolver {
	return &Resolver{
		downloader:  downloader,
		buildbotURL: buildbotURL,
		arch:        arch,
	}
}

// ListAvailable returns the versions published on a branch, oldest first.
// Names that do not parse as versions sort last, alphabetically.
func (r *Resolver) ListAvailable(ctx context.Context, branch string) ([]string, error) {
	indexURL, err := r.directoryURL(branch)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrAvailabilityCheck)
	}

	page, _, err := r.downloader.FetchString(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("list %s versions: %v: %w", branch, err, ErrAvailabilityCheck)
	}

	var versions []string

	for _, match := range listingShape.FindAllStringSubmatch(page, -1) {
		if match[1] != match[2] {
			continue
		}

		versions = append(versions, match[1])
	}

	slices.SortStableFunc(versions, compareListing)

	return versions, nil
}

// CheckAvailability reports whether a version can be installed for the
// resolver's architecture, telling the three refusals apart: the branch
// does not carry the version, the version has no directory for this
// architecture, or the directory does not reference the required archive.
// Failures to read the buildbot wrap ErrAvailabilityCheck instead.
func (r *Resolver) CheckAvailability(ctx context.Context, branch, version string) error {
	versions, err := r.ListAvailable(ctx, branch)
	if err != nil {
		return err
	}

	if !slices.Contains(versions, version) {
		return fmt.Errorf("%s on %s: %w", version, branch, ErrVersionUnavailable)
	}

	indexURL, err := r.directoryURL(branch, version, r.arch)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrAvailabilityCheck)
	}

	page, status, err := r.downloader.FetchString(ctx, indexURL)
	if err != nil {
		if status == http.StatusNotFound {
			return fmt.Errorf("%s %s has no %s directory: %w",
				branch, version, r.arch, ErrNoPackageForArch)
		}

		return fmt.Errorf("read %s index: %v: %w", version, err, ErrAvailabilityCheck)
	}

	required := spring.RequiredArchiveName(branch, version, r.arch)
	if !strings.Contains(page, required) {
		return fmt.Errorf("%s: %w", required, ErrArchiveMissing)
	}

	return nil
}

// ResolveLatest reads the branch LATEST pointer and returns the version it
// names.
func (r *Resolver) ResolveLatest(ctx context.Context, branch string) (string, error) {
	pointerURL, err := r.fileURL(branch, latestPointerFilename)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrAvailabilityCheck)
	}

	content, _, err := r.downloader.FetchString(ctx, pointerURL)
	if err != nil {
		return "", fmt.Errorf("read %s pointer: %v: %w", branch, err, ErrAvailabilityCheck)
	}

	version := spring.ParseLatestPointer(branch, content)
	if version == "" {
		return "", fmt.Errorf("%s pointer is empty: %w", branch, ErrAvailabilityCheck)
	}

	return version, nil
}

// ArchiveURL composes the download URL of one archive of a version.
func (r *Resolver) ArchiveURL(branch, version, name string) (string, error) {
	return r.fileURL(branch, version, r.arch, name)
}

// compareListing orders listing entries by version, pushing names that do
// not parse behind every real version.
func compareListing(a, b string) int {
	if c, ok := spring.CompareVersions(a, b); ok {
		if c != 0 {
			return c
		}

		return strings.Compare(a, b)
	}

	_, aOK := spring.Parse(a)
	_, bOK := spring.Parse(b)

	switch {
	case aOK:
		return -1
	case bOK:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// directoryURL joins path parts below the buildbot base, keeping the
// trailing slash that index pages are served under.
func (r *Resolver) directoryURL(parts ...string) (string, error) {
	joined, err := r.fileURL(parts...)
	if err != nil {
		return "", err
	}

	return joined + "/", nil
}

// fileURL joins path parts below the buildbot base.
func (r *Resolver) fileURL(parts ...string) (string, error) {
	base, err := url.Parse(r.buildbotURL)
	if err != nil {
		return "", err
	}

	// path.Join normalizes duplicate slashes when composing the URL path.
	base.Path = path.Join(append([]string{base.Path}, parts...)...)

	return base.String(), nil
}
