// Package rules answers messages from a static reply table without any I/O.
// Matching is deterministic: an exact-match lookup first, then keyword rules
// in declaration order, then a short-input greeting heuristic.
package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type MatchType string

const (
	MatchExact         MatchType = "exact"
	MatchKeyword       MatchType = "keyword"
	MatchShortGreeting MatchType = "short_greeting"
	MatchNone          MatchType = "none"
)

// Match describes a rule-table hit.
type Match struct {
	Reply    string
	Category string
	Type     MatchType
}

// Entry is one keyword rule: the first entry whose trigger appears as a
// substring of the normalized input wins.
type Entry struct {
	Triggers []string
	Reply    string
	Category string
}

var keywordEntries = []Entry{
	{
		Triggers: []string{"你好", "您好", "hi", "hello", "hey", "哈喽", "在吗", "在么"},
		Reply:    "您好！我是智能客服助手，有什么可以帮助您的吗？😊",
		Category: "greeting",
	},
	{
		Triggers: []string{"谢谢", "感谢", "多谢", "thx", "thanks"},
		Reply:    "不客气！很高兴能帮助您。如果还有其他问题，随时问我哦！😄",
		Category: "thanks",
	},
	{
		Triggers: []string{"再见", "拜拜", "结束", "88", "goodbye", "bye", "结束对话"},
		Reply:    "感谢您的咨询！祝您有愉快的一天！如有需要，随时回来找我。👋",
		Category: "farewell",
	},
	{
		Triggers: []string{"人工", "真人", "转人工", "人工客服", "找人工", "活人"},
		Reply:    "如果您需要人工客服协助，请拨打我们的客服热线：400-xxxx-xxxx\n工作时间：周一至周五 9:00-18:00",
		Category: "human_service",
	},
	{
		Triggers: []string{"时间", "营业", "几点", "上班", "下班", "工作时间", "几点下班"},
		Reply:    "我们的工作时间是：\n📅 周一至周五：9:00-18:00\n🚫 周末和法定节假日休息",
		Category: "working_hours",
	},
	{
		Triggers: []string{"地址", "位置", "在哪", "公司地址", "location", "where"},
		Reply:    "公司地址：XX省XX市XX区XX路XX号XX大厦XX层\n📍 您可以在官网\"联系我们\"页面查看详细地图和交通指南",
		Category: "address",
	},
	{
		Triggers: []string{"电话", "手机", "联系方式", "怎么联系", "联系你们"},
		Reply:    "📞 客服热线：400-xxxx-xxxx\n📧 客服邮箱：support@example.com\n💬 在线咨询：工作日 9:00-18:00",
		Category: "contact",
	},
	{
		Triggers: []string{"产品", "服务", "功能", "有什么服务", "提供什么"},
		Reply:    "我们提供以下服务：\n✅ 企业解决方案\n✅ 技术支持服务\n✅ 咨询与培训\n✅ 定制化开发\n🔗 详情请访问官网\"产品服务\"板块",
		Category: "products",
	},
	{
		Triggers: []string{"价格", "多少钱", "费用", "收费", "价格表", "报价"},
		Reply:    "💰 具体价格根据您的需求而定：\n1. 基础版：XXXX元/年\n2. 专业版：XXXX元/年\n3. 企业版：请联系销售顾问\n📋 完整价目表请访问官网",
		Category: "pricing",
	},
	{
		Triggers: []string{"怎么用", "如何使用", "教程", "帮助", "使用说明", "怎么操作"},
		Reply:    "📚 使用指南：\n1. 访问官网\"帮助中心\"\n2. 下载用户手册（PDF）\n3. 观看教程视频\n4. 参加在线培训课程\n💡 需要具体帮助请告诉我您遇到的问题",
		Category: "usage",
	},
	{
		Triggers: []string{"问题", "故障", "错误", "bug", "无法使用", "用不了", "报错"},
		Reply:    "抱歉给您带来不便！🔧\n请尝试：\n1. 刷新页面\n2. 清除缓存\n3. 检查网络连接\n如果问题依旧，请提供：\n📝 具体错误信息\n🖥️ 操作系统和浏览器\n📱 问题发生时间\n我们将尽快为您解决！",
		Category: "troubleshooting",
	},
	{
		Triggers: []string{"你们公司", "公司介绍", "关于你们", "什么公司", "介绍"},
		Reply:    "🏢 公司简介：\n我们是一家专注于企业服务的科技公司，成立于2010年，致力于为客户提供优质的解决方案。\n\n🌟 核心价值：专业、创新、服务、共赢\n\n📖 了解更多请访问官网\"关于我们\"",
		Category: "about",
	},
}

var exactReplies = map[string]string{
	"你是谁":   "我是智能客服助手，专门为您解答问题和提供帮助的AI机器人。🤖",
	"你叫什么":  "我是您的智能客服助手，没有具体的名字，但您可以叫我小助手！😊",
	"今天天气":  "抱歉，我是客服助手，无法获取实时天气信息。建议您查看天气预报应用或网站。",
	"现在几点":  "我无法获取实时时间，请查看您的设备时钟。",
	"系统状态":  "系统运行正常，所有服务均可使用。如有问题请联系技术支持。",
	"服务器状态": "服务器运行正常，感谢关注！",
	"好的":    "好的，有什么其他需要帮助的吗？",
	"明白":    "明白，请继续提问。",
	"知道了":   "好的，如有问题随时问我。",
}

const shortGreetingReply = "您好！请问有什么可以帮助您的？😊"

// Lookup matches a message against the reply tables. It reports ok=false
// when no rule applies.
func Lookup(message string) (Match, bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	exact := strings.TrimSpace(message)

	// Exact match wins over keyword match even when both would apply.
	if reply, ok := exactReplies[exact]; ok {
		return Match{Reply: reply, Category: "direct_match", Type: MatchExact}, true
	}

	for _, e := range keywordEntries {
		for _, trigger := range e.Triggers {
			if strings.Contains(normalized, trigger) {
				return Match{Reply: e.Reply, Category: e.Category, Type: MatchKeyword}, true
			}
		}
	}

	if isShortGreeting(exact) || isSymbolsOnly(exact) {
		return Match{Reply: shortGreetingReply, Category: "greeting", Type: MatchShortGreeting}, true
	}

	return Match{Type: MatchNone}, false
}

// isShortGreeting reports whether the message is at most three runes made up
// only of greeting characters.
func isShortGreeting(msg string) bool {
	if msg == "" || utf8.RuneCountInString(msg) > 3 {
		return false
	}
	for _, r := range msg {
		if !strings.ContainsRune("你好哈嗨", r) {
			return false
		}
	}
	return true
}

// isSymbolsOnly reports whether the message is at most five runes of
// punctuation, symbols or whitespace (e.g. a bare emoji or "???").
func isSymbolsOnly(msg string) bool {
	if msg == "" || utf8.RuneCountInString(msg) > 5 {
		return false
	}
	for _, r := range msg {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Categories lists the keyword rule categories in declaration order.
func Categories() []string {
	out := make([]string, 0, len(keywordEntries))
	for _, e := range keywordEntries {
		out = append(out, e.Category)
	}
	return out
}
