package rewrite

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lqqyt2423/go-rewriteproxy/internal/observability"
	_log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var log = _log.WithField("at", "rewrite")

// FlowKey identifies a (client, host) pair in the processed set.
type FlowKey struct {
	ClientIP string `json:"clientIp"`
	Hostname string `json:"hostname"`
}

// Pass describes one substitution run over one body.
type Pass struct {
	ClientIP string
	Hostname string
	At       time.Time
	BytesIn  int
	BytesOut int
	Changed  []*Rule // rules which modified the body
	Failed   []*RuleApplicationError
}

type Stats struct {
	Passes       uint64 `json:"passes"`
	RuleFailures uint64 `json:"ruleFailures"`
	Clients      int    `json:"clients"`
	Flows        int    `json:"flows"`
}

// Engine applies the literal rule and then every pattern rule, in load order,
// to eligible response bodies. It is safe for concurrent use.
type Engine struct {
	literal *Rule
	rules   []*Rule
	mime    string

	// advisory bookkeeping, never consulted to skip a pass
	connections store[string, time.Time]
	processed   store[FlowKey, struct{}]

	passes       atomic.Uint64
	ruleFailures atomic.Uint64

	metrics     *observability.Metrics
	observersMu sync.RWMutex
	observers   []func(*Pass)

	now func() time.Time
}

func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rules := make([]*Rule, 0)
	if cfg.RegexFile != "" {
		var err error
		rules, err = LoadRules(cfg.RegexFile, cfg.RuleTimeout)
		if err != nil {
			return nil, &ConfigurationError{Reason: "load regex file " + cfg.RegexFile, Err: err}
		}
		log.Infof("loaded %v rules from %v", len(rules), cfg.RegexFile)
	}

	return newEngine(cfg, rules), nil
}

func newEngine(cfg *Config, rules []*Rule) *Engine {
	e := &Engine{
		rules:       rules,
		mime:        cfg.mime(),
		connections: newStore[string, time.Time](cfg.RecordCapacity),
		processed:   newStore[FlowKey, struct{}](cfg.RecordCapacity),
		observers:   make([]func(*Pass), 0),
		now:         time.Now,
	}
	if cfg.hasLiteral() {
		e.literal = newLiteralRule(cfg.SearchStr, cfg.ReplaceStr)
	}
	return e
}

func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// OnPass registers fn to be called synchronously after every pass.
func (e *Engine) OnPass(fn func(*Pass)) {
	e.observersMu.Lock()
	e.observers = append(e.observers, fn)
	e.observersMu.Unlock()
}

// Rules returns every rule in application order.
func (e *Engine) Rules() []*Rule {
	rules := make([]*Rule, 0, len(e.rules)+1)
	if e.literal != nil {
		rules = append(rules, e.literal)
	}
	return append(rules, e.rules...)
}

// IsEligible is a plain, case sensitive substring test:
// "text/html; charset=utf-8" is eligible, "TEXT/HTML" is not.
func (e *Engine) IsEligible(mime string) bool {
	return strings.Contains(mime, e.mime)
}

// Apply runs every rule over body and returns the result. A failing pattern
// rule is logged and skipped, Apply itself never fails.
func (e *Engine) Apply(body, clientIP, hostname string) string {
	out, _ := e.run(body, clientIP, hostname)
	return out
}

func (e *Engine) run(body, clientIP, hostname string) (string, *Pass) {
	log := log.WithFields(_log.Fields{
		"client": clientIP,
		"host":   hostname,
	})

	pass := &Pass{
		ClientIP: clientIP,
		Hostname: hostname,
		BytesIn:  len(body),
		Changed:  make([]*Rule, 0),
		Failed:   make([]*RuleApplicationError, 0),
	}

	for _, rule := range e.Rules() {
		out, err := e.tryApply(rule, body)
		if err != nil {
			rerr := &RuleApplicationError{Rule: rule, ClientIP: clientIP, Hostname: hostname, Err: err}
			log.Error(rerr)
			pass.Failed = append(pass.Failed, rerr)
			e.ruleFailures.Inc()
			e.metrics.ObserveRule(rule.Kind.String(), "error")
			continue
		}

		if out == body {
			log.Debugf("%v matched nothing", rule)
			e.metrics.ObserveRule(rule.Kind.String(), "unchanged")
			continue
		}

		if rule.Kind == Literal {
			log.Infof("Replaced '%s' with '%s'", rule.Pattern, rule.Replacement)
		} else {
			log.Infof("Occurrences matching '%s' replaced with '%s'", rule.Pattern, rule.Replacement)
		}
		pass.Changed = append(pass.Changed, rule)
		e.metrics.ObserveRule(rule.Kind.String(), "changed")
		body = out
	}

	pass.At = e.now()
	pass.BytesOut = len(body)
	e.connections.Add(clientIP, pass.At)
	e.processed.Add(FlowKey{ClientIP: clientIP, Hostname: hostname}, struct{}{})
	e.passes.Inc()
	e.metrics.ObservePass(pass.BytesIn, pass.BytesOut)

	e.observersMu.RLock()
	observers := e.observers
	e.observersMu.RUnlock()
	for _, fn := range observers {
		fn(pass)
	}

	return body, pass
}

// tryApply leaves body untouched whenever it returns an error.
func (e *Engine) tryApply(rule *Rule, body string) (string, error) {
	out, err := rule.apply(body)
	if err != nil {
		return body, err
	}
	return out, nil
}

// LastRewrite is when clientIP last had a body rewritten.
func (e *Engine) LastRewrite(clientIP string) (time.Time, bool) {
	return e.connections.Peek(clientIP)
}

// Processed reports whether a pass ran for the pair. It is bookkeeping only,
// Apply does not consult it.
func (e *Engine) Processed(clientIP, hostname string) bool {
	_, ok := e.processed.Peek(FlowKey{ClientIP: clientIP, Hostname: hostname})
	return ok
}

func (e *Engine) Stats() Stats {
	return Stats{
		Passes:       e.passes.Load(),
		RuleFailures: e.ruleFailures.Load(),
		Clients:      e.connections.Len(),
		Flows:        e.processed.Len(),
	}
}

type Snapshot struct {
	Mime    string               `json:"mime"`
	Rules   []*Rule              `json:"rules"`
	Stats   Stats                `json:"stats"`
	Clients map[string]time.Time `json:"clients"`
	Flows   []FlowKey            `json:"flows"`
}

func (e *Engine) Snapshot() *Snapshot {
	s := &Snapshot{
		Mime:    e.mime,
		Rules:   e.Rules(),
		Stats:   e.Stats(),
		Clients: make(map[string]time.Time),
		Flows:   e.processed.Keys(),
	}
	for _, ip := range e.connections.Keys() {
		if at, ok := e.connections.Peek(ip); ok {
			s.Clients[ip] = at
		}
	}
	sort.Slice(s.Flows, func(i, j int) bool {
		if s.Flows[i].ClientIP != s.Flows[j].ClientIP {
			return s.Flows[i].ClientIP < s.Flows[j].ClientIP
		}
		return s.Flows[i].Hostname < s.Flows[j].Hostname
	})
	return s
}
