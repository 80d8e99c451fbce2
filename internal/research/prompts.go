package research

import "fmt"

// PromptParams carries the repository and language context every system
// prompt template is formatted with, matching the fields original_source's
// prompt templates interpolate (repo_type, repo_url, repo_name,
// research_iteration, language_name).
type PromptParams struct {
	RepoType     string
	RepoURL      string
	RepoName     string
	LanguageName string
	ResearchIter int
}

// SystemPrompt renders the system prompt for the given mode, matching the
// original implementation's per-mode template selection.
func SystemPrompt(mode Mode, p PromptParams) string {
	switch mode {
	case ModeFirstIteration:
		return fmt.Sprintf(simpleChatTemplate+firstIterationSuffix, p.RepoType, p.RepoURL, p.RepoName, p.LanguageName)
	case ModeIntermediateResearch:
		return fmt.Sprintf(simpleChatTemplate+intermediateSuffix, p.RepoType, p.RepoURL, p.RepoName, p.LanguageName, p.ResearchIter)
	case ModeFinalIteration:
		return fmt.Sprintf(simpleChatTemplate+finalIterationSuffix, p.RepoType, p.RepoURL, p.RepoName, p.LanguageName, p.ResearchIter)
	default:
		return fmt.Sprintf(simpleChatTemplate, p.RepoType, p.RepoURL, p.RepoName, p.LanguageName)
	}
}

const simpleChatTemplate = `You are a code assistant answering questions about a %s repository at %s (%s).
Answer in %s. Ground every claim in the retrieved source excerpts provided below; never fabricate file paths, function names, or behavior.`

const firstIterationSuffix = `

This is the first iteration of a multi-step Deep Research investigation. Identify the key areas of the codebase relevant to the topic, outline a research plan, and state what you will investigate next. Do not attempt to give a final answer yet.`

const intermediateSuffix = `

This is iteration %[5]d of an ongoing Deep Research investigation. Build on the findings from prior iterations rather than restarting. State what you have confirmed so far, what remains open, and what you will examine next.`

const finalIterationSuffix = `

This is the final iteration (iteration %[5]d) of a Deep Research investigation. Synthesize every finding from prior iterations into one comprehensive, conclusive answer. Do not propose further research steps.`
