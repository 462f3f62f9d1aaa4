package types

// Version is the canonical project version.
// The CLI, the manifest writer, and log output all report this version.
const Version = "0.3.0"
