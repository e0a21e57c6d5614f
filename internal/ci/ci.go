// Package ci detects whether idev is running under a CI provider.
package ci

import "os"

// RunningOnGitHubActions reports whether the process runs in GitHub Actions.
func RunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// RunningOnAzurePipelines reports whether the process runs in Azure Pipelines.
func RunningOnAzurePipelines() bool {
	return os.Getenv("TF_BUILD") == "True"
}

// RunningOnAppVeyor reports whether the process runs in AppVeyor.
func RunningOnAppVeyor() bool {
	v := os.Getenv("APPVEYOR")
	return v == "True" || v == "true"
}

// RunningOnTravis reports whether the process runs in Travis CI.
func RunningOnTravis() bool {
	return os.Getenv("TRAVIS") == "true"
}

// RunningOnCI reports whether any known CI provider is detected.
func RunningOnCI() bool {
	return RunningOnGitHubActions() || RunningOnAzurePipelines() || RunningOnAppVeyor() || RunningOnTravis()
}

// EnvVars returns the provider marker variables that test environments need
// passed through so tooling inside them can detect CI as well.
func EnvVars() []string {
	return []string{"APPVEYOR", "TF_BUILD", "TRAVIS", "GITHUB_ACTIONS"}
}
