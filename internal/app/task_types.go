package app

import executor "renpy-unapk/internal/executor"

// Type aliases to keep executor names short in the app package.
type TaskResult = executor.TaskResult
type Summary = executor.Summary
type BatchRequest = executor.BatchRequest
