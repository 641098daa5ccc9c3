package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/locator"
	"github.com/xkilldash9x/stepwise/internal/observability"
	"github.com/xkilldash9x/stepwise/internal/search"
	"github.com/xkilldash9x/stepwise/internal/wait"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type locateOptions struct {
	file       string
	url        string
	attrType   string
	value      string
	visibility string
	filters    []string
	wait       bool
	matchAll   bool
	timeout    time.Duration
	format     string
}

// match is one located element as printed by locate.
type match struct {
	ID        string `json:"id"`
	Tag       string `json:"tag"`
	Text      string `json:"text,omitempty"`
	Displayed bool   `json:"displayed"`
	Enabled   bool   `json:"enabled"`
}

func newLocateCmd() *cobra.Command {
	var o locateOptions
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Resolve a locator against a saved page or a live URL and list the matches",
		Example: `  stepwise locate --file login.html --type id --value user
  stepwise locate --url https://example.com --type xpath --value //a --filter "contains text=More" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (o.file == "") == (o.url == "") {
				return errors.New("exactly one of --file or --url is required")
			}
			loc, err := o.locator()
			if err != nil {
				return err
			}
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := observability.GetLogger()

			s, err := newSessions(ctx, cfg, logger, o.url != "", o.file, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			driver, release, err := s.open(ctx)
			if err != nil {
				return err
			}
			defer release()
			if o.url != "" {
				if err := driver.(webdriver.Navigator).Navigate(ctx, o.url); err != nil {
					return fmt.Errorf("navigating to %s: %w", o.url, err)
				}
			}

			opts := wait.OptionsFrom(cfg.Wait())
			if o.timeout > 0 {
				opts = opts.WithTimeout(o.timeout)
			}
			finder := wait.NewFinder(search.NewEngine(search.DefaultRegistry(), logger), opts, logger)
			res, err := finder.FindElements(ctx, driver, loc)
			if err != nil {
				return fmt.Errorf("locating %s: %w", loc, err)
			}
			logger.Debug("Locate finished.", zap.String("locator", loc.String()), zap.String("matches", res.Describe()))
			return printMatches(cmd, o.format, loc, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.file, "file", "", "HTML file to search offline")
	f.StringVar(&o.url, "url", "", "URL to open in Chrome and search")
	f.StringVar(&o.attrType, "type", "", "locator type, e.g. id, xpath, css, link_text, contains_text")
	f.StringVar(&o.value, "value", "", "locator value")
	f.StringVar(&o.visibility, "visibility", "visible", "visible, invisible or all")
	f.StringArrayVar(&o.filters, "filter", nil, "filter as type=value, repeatable (e.g. text=Save)")
	f.BoolVar(&o.wait, "wait", false, "poll until something matches")
	f.BoolVar(&o.matchAll, "match-all", true, "allow several matches")
	f.DurationVar(&o.timeout, "timeout", 0, "override wait.timeout")
	f.StringVar(&o.format, "format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// locator turns the flags into the flat row form understood by
// locator.Parse.
func (o locateOptions) locator() (locator.Locator, error) {
	row := map[string]string{
		locator.KeyType:       o.attrType,
		locator.KeyValue:      o.value,
		locator.KeyVisibility: o.visibility,
		locator.KeyWait:       strconv.FormatBool(o.wait),
		locator.KeyMatchAll:   strconv.FormatBool(o.matchAll),
	}
	for _, f := range o.filters {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return locator.Locator{}, fmt.Errorf("filter %q must be type=value", f)
		}
		row["filter."+strings.TrimSpace(name)] = value
	}
	return locator.Parse(row)
}

func printMatches(cmd *cobra.Command, format string, loc locator.Locator, res search.Result) error {
	ctx := cmd.Context()
	matches := make([]match, 0, res.Len())
	for _, el := range res {
		m := match{ID: el.ID()}
		var err error
		if m.Tag, err = el.TagName(ctx); err != nil {
			return err
		}
		if m.Text, err = el.Text(ctx); err != nil {
			return err
		}
		if m.Displayed, err = el.IsDisplayed(ctx); err != nil {
			return err
		}
		if m.Enabled, err = el.IsEnabled(ctx); err != nil {
			return err
		}
		matches = append(matches, m)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	case "text", "":
		return writeMatches(out, loc, matches)
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeMatches(w io.Writer, loc locator.Locator, matches []match) error {
	if _, err := fmt.Fprintf(w, "%d element(s) matched %s\n", len(matches), loc); err != nil {
		return err
	}
	for i, m := range matches {
		state := "visible"
		if !m.Displayed {
			state = "hidden"
		}
		if !m.Enabled {
			state += ",disabled"
		}
		if _, err := fmt.Fprintf(w, "%3d  <%s> %-16s %q\n", i+1, m.Tag, state, m.Text); err != nil {
			return err
		}
	}
	return nil
}
