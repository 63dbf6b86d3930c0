package main

// General API documentation for swaggo. Regenerate the docs package with
// `swag init -g cmd/ox/docs.go -o docs` and build with -tags=swagger to serve
// it under /swagger/.
//
// @title           oxpilot API
// @version         1.0
// @description     OpenAI-compatible local inference server with streaming completions.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
