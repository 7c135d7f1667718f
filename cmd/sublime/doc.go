// Command sublime corrects SRT subtitle files with an LLM. It can fix a
// file in one shot, inspect parsed cues, and serve the review API used by
// the web frontend.
package main
