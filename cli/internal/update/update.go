package update

import (
	"fmt"
	"runtime"

	"github.com/hashicorp/go-version"

	"github.com/hydrate-orm/hydrate-go/cli/internal/ui"
)

// latestKnownVersion is compared against until release metadata is
// fetched from an API.
const latestKnownVersion = "0.1.0"

// CheckForUpdates checks if a newer version is available
func CheckForUpdates(currentVersion string) error {
	current, err := version.NewVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("invalid version format: %w", err)
	}

	latest, err := version.NewVersion(latestKnownVersion)
	if err != nil {
		return fmt.Errorf("invalid latest version format: %w", err)
	}

	if current.LessThan(latest) {
		ui.PrintWarning("A new version is available!")
		fmt.Printf("Current version: %s\n", currentVersion)
		fmt.Printf("Latest version:  %s\n", latestKnownVersion)
		fmt.Printf("\nUpdate with: go install github.com/hydrate-orm/hydrate-go@latest\n")
		return nil
	}

	return nil
}

// GetDownloadURL returns the download URL for the current platform
func GetDownloadURL(version string) string {
	os := runtime.GOOS
	arch := runtime.GOARCH
	return fmt.Sprintf("https://github.com/hydrate-orm/hydrate-go/releases/download/v%s/hydrate-%s-%s", version, os, arch)
}
