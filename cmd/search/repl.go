package main

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/searcher"
)

// runner is the part of the search service the CLI drives.
type runner interface {
	RunQuery(ctx context.Context, raw string, k int) (*searcher.Response, error)
}

var quitWords = map[string]bool{"quit": true, "exit": true, "q": true}

var leadingCount = regexp.MustCompile(`^(\d+)`)

// parseCommand splits one prompt line into the query and the hit count.
// "--hits N" may appear anywhere; words after N join the query. quit is true
// for the quit words.
func parseCommand(line string, fallback int) (query string, hits int, quit bool) {
	line = strings.TrimSpace(line)
	if quitWords[strings.ToLower(line)] {
		return "", 0, true
	}
	parts := strings.Split(line, "--hits")
	if len(parts) == 2 {
		before := strings.TrimSpace(parts[0])
		after := strings.TrimSpace(parts[1])
		if m := leadingCount.FindString(after); m != "" {
			n, err := strconv.Atoi(m)
			if err != nil {
				return line, fallback, false
			}
			rest := strings.TrimSpace(after[len(m):])
			return strings.TrimSpace(before + " " + rest), n, false
		}
	}
	return line, fallback, false
}

func searchOnce(ctx context.Context, s runner, r *renderer, query string, hits int) error {
	resp, err := s.RunQuery(ctx, query, hits)
	if err != nil {
		r.error(err)
		return err
	}
	r.response(resp, hits)
	return nil
}

func repl(ctx context.Context, in io.Reader, s runner, r *renderer, hits int) error {
	r.welcome(hits)
	scanner := bufio.NewScanner(in)
	for {
		r.prompt()
		if !scanner.Scan() {
			r.goodbye()
			return scanner.Err()
		}
		if ctx.Err() != nil {
			r.goodbye()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			r.warn("please enter a query")
			continue
		}
		query, n, quit := parseCommand(line, hits)
		if quit {
			r.goodbye()
			return nil
		}
		if query == "" {
			r.warn("please enter a query")
			continue
		}
		if n <= 0 {
			r.warn("--hits must be at least 1")
			continue
		}
		// Errors are shown and the prompt continues.
		_ = searchOnce(ctx, s, r, query, n)
	}
}
