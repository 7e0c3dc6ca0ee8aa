package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/inno/internal/errmsg"
)

type ruleFile struct {
	Name       string            `koanf:"name"`
	Enabled    *bool             `koanf:"enabled"`
	Bus        string            `koanf:"bus"`
	Match      MatchSpec         `koanf:"match"`
	Extract    map[string]string `koanf:"extract"`
	StateMap   map[string]string `koanf:"state_map"`
	Format     formatSection     `koanf:"format"`
	Conditions conditionsSection `koanf:"conditions"`
}

type formatSection struct {
	Message string `koanf:"message"`
}

type conditionsSection struct {
	TriggerOn  []string `koanf:"trigger_on"`
	DebounceMs uint64   `koanf:"debounce_ms"`
	RequireAll bool     `koanf:"require_all"`
}

// LoadFile parses a single rule file. A missing name defaults to the file
// name without extension.
func LoadFile(path string) (Rule, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return Rule{}, fmt.Errorf("parse %s: %w", path, err)
	}

	var rf ruleFile
	if err := k.Unmarshal("", &rf); err != nil {
		return Rule{}, fmt.Errorf("decode %s: %w", path, err)
	}

	name := rf.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return Rule{
		Name:            name,
		Enabled:         rf.Enabled == nil || *rf.Enabled,
		Bus:             ParseDomain(rf.Bus),
		Match:           rf.Match,
		Extract:         rf.Extract,
		StateMap:        rf.StateMap,
		DebounceMs:      rf.Conditions.DebounceMs,
		TriggerOn:       rf.Conditions.TriggerOn,
		RequireAll:      rf.Conditions.RequireAll,
		MessageTemplate: rf.Format.Message,
	}, nil
}

// Load reads every *.toml rule from the first existing directory in dirs.
// Unreadable files and disabled rules are skipped. When nothing loads the
// built-in battery rule is returned; Dir still names the directory that was
// read so it can be watched for rules added later.
func Load(log logrus.FieldLogger, dirs []string) RuleSet {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		log.WithField("dir", dir).Info("loading event rules")
		rs := RuleSet{Dir: dir, Rules: loadDir(log, dir)}
		if len(rs.Rules) == 0 {
			log.WithField("dir", dir).Info("no event rules loaded, using built-in battery rule")
			rs.Rules = []Rule{Builtin()}
		}
		return rs
	}

	log.Info("no event rules found, using built-in battery rule")
	return RuleSet{Rules: []Rule{Builtin()}}
}

func loadDir(log logrus.FieldLogger, dir string) []Rule {
	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		log.Warn(errmsg.FormatWith(errmsg.OpRulesLoad, dir, err))
		return nil
	}
	sort.Strings(paths)

	var out []Rule
	for _, path := range paths {
		rule, err := LoadFile(path)
		if err != nil {
			log.Warn(errmsg.FormatWith(errmsg.OpRulesLoad, path, err))
			continue
		}
		if !rule.Enabled {
			log.WithField("rule", rule.Name).Info("skipping disabled event rule")
			continue
		}
		if rule.Match.IsEmpty() {
			log.WithField("rule", rule.Name).Warn("event rule has an empty match section and will match every signal")
		}
		log.WithFields(logrus.Fields{
			"rule": rule.Name,
			"bus":  rule.Bus,
			"file": filepath.Base(path),
		}).Info("loaded event rule")
		out = append(out, rule)
	}
	return out
}
