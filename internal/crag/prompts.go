package crag

import _ "embed"

var (
	//go:embed prompts/score.txt
	scorePrompt string
	//go:embed prompts/analyze.txt
	analyzePrompt string
	//go:embed prompts/chat.txt
	chatPrompt string
	//go:embed prompts/tailor.txt
	tailorPrompt string
	//go:embed prompts/match.txt
	matchPrompt string
)
