// Package yara implements scan.Engine on top of libyara 4.x through go-yara.
package yara

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"yarascan/cache"
	"yarascan/scan"

	goyara "github.com/hillu/go-yara/v4"
	"github.com/rs/zerolog"
)

// Bumped whenever the way rules are compiled changes, so stale cache entries are not picked up.
const cacheFormat = "yara-v4-1"

type engineImpl struct {
	logger zerolog.Logger
	cache  cache.Store
}

// NewEngine creates a scan.Engine backed by libyara. The cache may be nil.
func NewEngine(logger zerolog.Logger, c cache.Store) scan.Engine {
	return &engineImpl{logger: logger, cache: c}
}

func (e *engineImpl) Compile(filename string) (rs scan.RuleSet, err error) {
	if filename == "" {
		return
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		e.logger.Error().Err(err).Str("file", filename).Msg("YARA could not open rule file")
		err = fmt.Errorf("%w: %v", scan.ErrRuleFileNotFound, err)
		return
	}

	// The cache key only covers src, so rule files that may include other files are always compiled.
	cacheable := !bytes.Contains(src, []byte("include"))
	cacheID := cache.ID([]byte(cacheFormat), src)
	if cacheable {
		if rules := e.loadFromCache(cacheID); rules != nil {
			e.logger.Info().Str("file", filename).Str("cacheID", cacheID).Msg("Loaded compiled YARA rules from cache")
			rs = &ruleSet{rules: rules}
			return
		}
	}

	compiler, err := goyara.NewCompiler()
	if err != nil {
		err = fmt.Errorf("failed to create YARA compiler: %v", err)
		return
	}
	defer compiler.Destroy()

	includes := &includeResolver{logger: e.logger, dir: filepath.Dir(filename)}
	compiler.SetIncludeCallback(includes.resolve)

	addErr := compiler.AddString(string(src), "")
	e.reportDiagnostics(filename, compiler)
	if addErr != nil || len(compiler.Errors) > 0 {
		err = fmt.Errorf("%w: %v: %d error(s), first: %v", scan.ErrRuleCompile, filename, len(compiler.Errors), firstError(addErr, compiler))
		return
	}

	rules, err := compiler.GetRules()
	if err != nil {
		err = fmt.Errorf("%w: %v: %v", scan.ErrRuleCompile, filename, err)
		return
	}

	if cacheable && len(includes.files) == 0 {
		e.saveToCache(cacheID, rules)
	}
	rs = &ruleSet{rules: rules}
	return
}

// Close is a no-op: libyara's global state is managed by go-yara itself.
func (e *engineImpl) Close() {}

func (e *engineImpl) reportDiagnostics(filename string, c *goyara.Compiler) {
	report := func(ev *zerolog.Event, severity string, m goyara.CompilerMessage) {
		file := m.Filename
		if file == "" {
			file = filename
		}
		ev.Str("severity", severity).Str("file", file).Int("line", m.Line).Msg(m.Text)
	}

	for _, m := range c.Errors {
		report(e.logger.Error(), "error", m)
	}
	for _, m := range c.Warnings {
		report(e.logger.Warn(), "warning", m)
	}
}

// includeResolver reads the files named by include directives. Relative names are resolved against the
// directory of the file containing the directive.
type includeResolver struct {
	logger zerolog.Logger
	dir    string
	files  []string
}

func (r *includeResolver) resolve(name, filename, namespace string) []byte {
	path := name
	if !filepath.IsAbs(path) {
		dir := r.dir
		if filename != "" {
			if filepath.IsAbs(filename) {
				dir = filepath.Dir(filename)
			} else {
				dir = filepath.Join(r.dir, filepath.Dir(filename))
			}
		}
		path = filepath.Join(dir, name)
	}

	bb, err := os.ReadFile(path)
	if err != nil {
		r.logger.Error().Err(err).Str("file", path).Msg("YARA could not open included rule file")
		return nil
	}

	r.files = append(r.files, path)
	return bb
}

func firstError(addErr error, c *goyara.Compiler) string {
	if len(c.Errors) > 0 {
		m := c.Errors[0]
		return fmt.Sprintf("line %d: %s", m.Line, m.Text)
	}
	return addErr.Error()
}

func (e *engineImpl) loadFromCache(cacheID string) *goyara.Rules {
	if e.cache == nil {
		return nil
	}

	bb := e.cache.Load(cacheID)
	if bb == nil {
		return nil
	}

	rules, err := goyara.ReadRules(bytes.NewReader(bb))
	if err != nil {
		e.logger.Warn().Err(err).Str("cacheID", cacheID).Msg("Ignoring unreadable YARA rules cache entry")
		return nil
	}

	return rules
}

func (e *engineImpl) saveToCache(cacheID string, rules *goyara.Rules) {
	if e.cache == nil {
		return
	}

	var b bytes.Buffer
	if err := rules.Write(&b); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to serialize compiled YARA rules")
		return
	}

	if err := e.cache.Save(cacheID, b.Bytes()); err != nil {
		e.logger.Warn().Err(err).Str("cacheID", cacheID).Msg("Failed to write YARA rules cache entry")
	}
}
