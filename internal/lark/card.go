// Package lark renders and delivers bilingual (English + Chinese) interactive
// Lark cards for agent-lost cases.
package lark

import "fmt"

// CaseContext holds the rendering-ready fields of one case notification. It is
// derived once from a detected case and an outcome, serialized, and discarded.
type CaseContext struct {
	CaseNumber        string
	BuildURL          string
	FailureReason     string
	ResolutionPlan    string
	ResolutionBasis   string
	CustomerNotified  string
	CustomerClickedAt string
	LastRetryTime     string
	RetryCount        string
}

// Card is the top-level Lark webhook payload.
type Card struct {
	MsgType string   `json:"msg_type"`
	Card    CardBody `json:"card"`
}

type CardBody struct {
	Config   CardConfig    `json:"config"`
	Elements []CardElement `json:"elements"`
	Header   CardHeader    `json:"header"`
}

type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardElement is either a markdown block or an action row; unused fields are
// omitted from the JSON.
type CardElement struct {
	Tag     string       `json:"tag"`
	Content string       `json:"content,omitempty"`
	Actions []CardAction `json:"actions,omitempty"`
}

type CardAction struct {
	Tag      string    `json:"tag"`
	Text     CardText  `json:"text"`
	Type     string    `json:"type"`
	MultiURL CardLinks `json:"multi_url"`
}

type CardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type CardLinks struct {
	URL        string `json:"url"`
	PCURL      string `json:"pc_url"`
	AndroidURL string `json:"android_url"`
	IOSURL     string `json:"ios_url"`
}

type CardHeader struct {
	Template string   `json:"template"`
	Title    CardText `json:"title"`
}

// BuildCard renders a CaseContext into the fixed bilingual interactive card:
// a blue header with the case number, one markdown element carrying the case
// fields, and a button linking to the build.
func BuildCard(cc CaseContext) Card {
	content := fmt.Sprintf(
		"**❌ Failure Reason | 失败原因:**\n"+
			"<font color='blue'>%s</font>\n\n"+
			"**🔧 Resolution Plan | 处理方案:**\n%s\n\n"+
			"**📄 Based On | 处理依据:**\n%s\n\n"+
			"**📢 Customer Notified | 已通知客户:** %s\n"+
			"**🕒 Customer Clicked At | 点击时间:** %s\n"+
			"**🔁 Last Auto Retry | 最近自动重试:** %s\n"+
			"**🔁 Retry Count | 重试次数:** %s",
		cc.FailureReason,
		cc.ResolutionPlan,
		cc.ResolutionBasis,
		cc.CustomerNotified,
		cc.CustomerClickedAt,
		cc.LastRetryTime,
		cc.RetryCount,
	)

	return Card{
		MsgType: "interactive",
		Card: CardBody{
			Config: CardConfig{WideScreenMode: true},
			Elements: []CardElement{
				{Tag: "markdown", Content: content},
				{
					Tag: "action",
					Actions: []CardAction{
						{
							Tag: "button",
							Text: CardText{
								Tag:     "plain_text",
								Content: "🔍 View Build Details | 查看Build详情",
							},
							Type:     "primary",
							MultiURL: CardLinks{URL: cc.BuildURL},
						},
					},
				},
			},
			Header: CardHeader{
				Template: "blue",
				Title: CardText{
					Tag:     "plain_text",
					Content: "Case " + cc.CaseNumber,
				},
			},
		},
	}
}
