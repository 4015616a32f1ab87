package version

// Version is the release version reported by the server and the CLI.
const Version = "v0.4.2"

// UserAgent is sent on every outbound request to the assistant API.
const UserAgent = "OCC-Titles/" + Version
