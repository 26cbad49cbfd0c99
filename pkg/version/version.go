// Package version exposes the SDK's own version/variant identity, sent on
// every request's authentication headers, and release detection for the
// caller's deployed application.
//
// Go 1.18+ automatically embeds VCS info (git commit, dirty flag, etc.)
// into the binary via runtime/debug.BuildInfo. No -ldflags required.
package version

import (
	"os"
	"runtime/debug"
)

// SDKName is the fixed protocol identity every request carries
// (X-Langfuse-Sdk-Name, and metadata.sdk_name on every ingestion batch).
// The ingestion backend keys behavior off this literal string, so it stays
// "langfuse-js" regardless of implementation language, matching every
// other langfuse client.
const SDKName = "langfuse-js"

// SDKVariant identifies this implementation among langfuse-js-protocol
// clients.
const SDKVariant = "go"

// SDKVersion is the main module's version as recorded in the binary's build
// info, or "0.0.0-dev" when build info is missing or reports "(devel)".
var SDKVersion = initSDKVersion()

func initSDKVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "0.0.0-dev"
	}
	return info.Main.Version
}

// releaseEnvChain is the ordered list of environment variables consulted by
// DetectRelease. Order is stable and must be preserved for compatibility:
// an explicit override always wins, then well-known CI-provider commit SHA
// variables in the order most widely deployed platforms expose them.
var releaseEnvChain = []string{
	"LANGFUSE_RELEASE",
	"VERCEL_GIT_COMMIT_SHA",
	"NEXT_PUBLIC_VERCEL_GIT_COMMIT_SHA",
	"CF_PAGES_COMMIT_SHA",
	"RENDER_GIT_COMMIT",
	"RAILWAY_GIT_COMMIT_SHA",
	"HEROKU_SLUG_COMMIT",
	"SOURCE_VERSION",
	"GITHUB_SHA",
	"CIRCLE_SHA1",
	"BITBUCKET_COMMIT",
	"BUILDKITE_COMMIT",
}

// DetectRelease walks releaseEnvChain and returns the first non-empty value,
// or "" if none are set. Used to populate the release tag on newly created
// traces.
func DetectRelease() string {
	for _, name := range releaseEnvChain {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
