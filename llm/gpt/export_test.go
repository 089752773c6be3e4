package gpt

// ClassifyErr exposes classifyErr for testing.
var ClassifyErr = classifyErr
