// Package fallback synthesizes a deterministic local reply for messages that
// matched no rule and could not be answered by any provider.
package fallback

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

const howToTemplate = `关于"%s"的操作方法：
1. 🔍 请先查看我们的帮助文档
2. 📺 观看相关教程视频
3. 📞 如需人工指导，请联系客服
具体步骤可能因您的实际情况有所不同。您能描述一下您当前的具体场景吗？`

const whyTemplate = `关于"%s"的原因分析：
这个问题可能涉及多个因素。建议您：

1. 📊 检查相关设置或配置
2. 🔧 确认操作步骤是否正确
3. 💬 联系技术支持提供具体错误信息

您能提供更多细节吗？比如错误提示或问题发生时的具体情况。`

const questionTemplate = `感谢您的提问："%s"。

我已记录您的问题，但由于当前AI服务暂时不可用，建议您：

1. 📚 访问我们的知识库查找答案
2. 📧 发送邮件至 support@example.com
3. ☎️ 拨打客服热线 400-xxxx-xxxx

我们会在获取到AI服务后尽快为您提供更准确的回答。`

var genericTemplates = []string{
	"我已经收到您的消息：\"%s\"。\n\n目前AI服务正在优化升级中，建议您：\n1. 稍后重新提问\n2. 联系人工客服获取即时帮助\n3. 查看常见问题解答",
	"感谢您的咨询！关于\"%s\"，我需要更多信息来准确回答。\n\n您能提供：\n1. 具体的使用场景\n2. 遇到的问题细节\n3. 期望达成的目标\n\n这样我能更好地帮助您！",
	"您提到的\"%s\"是很重要的问题。\n\n目前AI助手正在学习相关知识，建议您：\n📞 联系专业客服：400-xxxx-xxxx\n📧 发送详细需求至：info@example.com\n⏰ 我们将在24小时内回复您",
}

// Generator picks a fallback template. The random source is injected so the
// generic-template choice can be pinned in tests. One Generator is shared by
// every request goroutine and rand.Rand is not safe for concurrent use, so
// draws are serialized.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func NewWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Reply synthesizes a reply from the message's coarse intent: how-to
// phrasing, why phrasing, question phrasing, else a random generic template.
func (g *Generator) Reply(message string) string {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "怎么", "如何", "怎样"):
		return fmt.Sprintf(howToTemplate, message)
	case containsAny(lower, "为什么", "原因", "为何"):
		return fmt.Sprintf(whyTemplate, message)
	case containsAny(lower, "?", "？", "什么"):
		return fmt.Sprintf(questionTemplate, message)
	}

	g.mu.Lock()
	n := g.rng.Intn(len(genericTemplates))
	g.mu.Unlock()
	return fmt.Sprintf(genericTemplates[n], message)
}

// Templates returns every possible reply for the message, useful for
// asserting membership when the random choice is not pinned.
func Templates(message string) []string {
	out := make([]string, 0, len(genericTemplates)+3)
	out = append(out,
		fmt.Sprintf(howToTemplate, message),
		fmt.Sprintf(whyTemplate, message),
		fmt.Sprintf(questionTemplate, message),
	)
	for _, tpl := range genericTemplates {
		out = append(out, fmt.Sprintf(tpl, message))
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
