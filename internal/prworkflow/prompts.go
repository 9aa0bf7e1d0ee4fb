package prworkflow

import "fmt"

func overrideSection(override string) string {
	if override == "" {
		return ""
	}
	return fmt.Sprintf(
		"HUMAN OVERRIDE DETECTED. The following instructions from a human take absolute priority over everything else, including the task description and review feedback:\n\n%s\n\n---\n\n",
		override)
}

func coderRound1Prompt(task, override string) string {
	return overrideSection(override) + fmt.Sprintf(`You have a task to implement. Do the following steps:

1. Read the task below and do minimal exploration, just enough to understand the code you need to change. The reviewer will catch anything you miss.
2. Implement the task.
3. Write unit tests for any new functionality, following existing patterns.
4. Run the project checks and fix anything they find.
5. Stage and commit your changes with a concise commit message.
6. Push the branch to the remote.
7. Open a PR with a descriptive title. The PR body must keep the task's "Closes #N" reference.

Your primary goal is a working PR. If something is unclear, make a reasonable choice and move on.

Task: %s`, task)
}

func coderFollowupPrompt(task string, prNumber int, override string) string {
	return overrideSection(override) + fmt.Sprintf(`You previously opened PR #%d for the following task:

Task: %s

The reviewer has requested changes. Do the following:

1. Read the review comments on PR #%d, including inline comments.
2. Reply to each piece of feedback: acknowledge and fix it, or push back with your reasoning.
3. Make code changes only for feedback you agree with.
4. Run the project checks and fix anything they find.
5. Commit and push.`, prNumber, task, prNumber)
}

func reviewerPrompt(prNumber int, override string) string {
	return overrideSection(override) + fmt.Sprintf(`Review PR #%d thoroughly.

Steps:
1. Read the full diff carefully.
2. Read surrounding files for context where needed.
3. Run the project checks.
4. Post your verdict as a PR comment. The comment body must contain exactly "%s" or "%s".

Verdict rules:
- CHANGES_REQUESTED only for blocking issues: bugs, security problems, failing checks, missing tests for new functionality, or correctness errors. Not for style preferences.
- APPROVED when checks pass, new functionality has tests, and there are no blocking issues. Non-blocking suggestions may be included in an approved review.
- Summarize check results instead of pasting raw terminal output.`, prNumber, VerdictApproved, VerdictChangesRequested)
}
