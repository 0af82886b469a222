package mcpserver

// LayoutURI addresses the storage layout resource.
const LayoutURI = "promptvault://layout"

// LayoutContract describes how prompts are stored in the backing repository,
// for LLM consumers that propose new prompts.
const LayoutContract = `# promptvault Storage Layout

Every prompt lives in its own directory under ` + "`prompts/`" + ` in the backing
repository. The directory name is the prompt slug.

## Structure

` + "```" + `
prompts/
  welcome-message/
    meta.yaml     # metadata, YAML mapping
    prompt.md     # the prompt body, any text
` + "```" + `

A directory without ` + "`prompt.md`" + ` is not a prompt. A missing or malformed
` + "`meta.yaml`" + ` is tolerated: defaults are used.

## meta.yaml fields

` + "```" + `yaml
title: Welcome message        # defaults to the slug
slug: welcome-message         # informational; the directory name wins
tags: [onboarding, email]     # list or comma-separated string
createdAt: 2024-01-02T03:04:05Z
updatedAt: 2024-01-02T03:04:05Z
author: ada                   # defaults to "unknown"
language: en                  # defaults to "en"
useCases: [support]           # list or comma-separated string
modelHints:                   # scalar values only
  temperature: 0.2
description: Optional summary
` + "```" + `

## Rules

1. **Slugs** are lowercase ` + "`a-z0-9`" + ` separated by single dashes. Any other run of
   characters in a title becomes one dash.
2. **Writes never touch the default branch.** Each proposal commits both files
   to a fresh ` + "`feature/prompt/<slug>-<unix millis>`" + ` branch and opens a pull
   request titled ` + "`feat(prompt): <title>`" + `.
3. **Tags** are trimmed; blanks and duplicates are dropped.
4. **Encoding** is UTF-8.
`
