package version

// Version is overridden at build time with -ldflags "-X hrtoolkit/internal/version.Version=...".
var Version = "dev"
