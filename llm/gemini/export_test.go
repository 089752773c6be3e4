package gemini

// ClassifyErr exposes classifyErr for testing.
var ClassifyErr = classifyErr
