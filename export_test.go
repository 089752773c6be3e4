package tracetalk

// RenderPrompt exposes renderPrompt for testing.
var RenderPrompt = renderPrompt
