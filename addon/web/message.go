package web

import (
	"encoding/json"
	"time"

	"github.com/lqqyt2423/go-rewriteproxy/proxy"
	"github.com/lqqyt2423/go-rewriteproxy/rewrite"
	"github.com/samber/lo"
)

const messageVersion = 1

const (
	messageOnPass     = "pass"
	messageOnResponse = "response"
)

type passMessage struct {
	ClientIP string          `json:"clientIp"`
	Hostname string          `json:"hostname"`
	At       time.Time       `json:"at"`
	BytesIn  int             `json:"bytesIn"`
	BytesOut int             `json:"bytesOut"`
	Changed  []*rewrite.Rule `json:"changed"`
	Failed   []string        `json:"failed"`
}

type message struct {
	Version int          `json:"v"`
	On      string       `json:"on"`
	Flow    *proxy.Flow  `json:"flow,omitempty"`
	Pass    *passMessage `json:"pass,omitempty"`
}

func newMessageFlow(f *proxy.Flow) *message {
	return &message{Version: messageVersion, On: messageOnResponse, Flow: f}
}

func newMessagePass(p *rewrite.Pass) *message {
	return &message{
		Version: messageVersion,
		On:      messageOnPass,
		Pass: &passMessage{
			ClientIP: p.ClientIP,
			Hostname: p.Hostname,
			At:       p.At,
			BytesIn:  p.BytesIn,
			BytesOut: p.BytesOut,
			Changed:  p.Changed,
			Failed: lo.Map(p.Failed, func(err *rewrite.RuleApplicationError, _ int) string {
				return err.Error()
			}),
		},
	}
}

func (m *message) bytes() ([]byte, error) {
	return json.Marshal(m)
}
