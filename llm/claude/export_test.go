package claude

// ClassifyErr exposes classifyErr for testing.
var ClassifyErr = classifyErr
