// Package prompt 构建数学导师的提示词
// 所有函数都是纯函数: 相同输入永远产生相同输出
package prompt

import (
	"fmt"
	"strings"

	"mathtutor/internal/config"
)

// 支持的语言标签
const (
	LocaleEN = "en"
	LocaleZH = "zh"
)

// Normalize 把任意语言标签归一化为受支持的 locale
// 无法识别的标签回落到英文
func Normalize(tag string) string {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case LocaleZH, "zh-cn", "zh-hans":
		return LocaleZH
	default:
		return LocaleEN
	}
}

// Builder 按 locale 生成系统提示词、重试提示词和兜底回复
// 数学公式定界符来自配置，文本内容本身固定
type Builder struct {
	inlineMath  string
	displayMath string
}

// NewBuilder 创建提示词构建器
func NewBuilder(cfg *config.PromptConfig) *Builder {
	inline := cfg.InlineMath
	if inline == "" {
		inline = "$"
	}
	display := cfg.DisplayMath
	if display == "" {
		display = "$$"
	}
	return &Builder{
		inlineMath:  inline,
		displayMath: display,
	}
}

// System 返回指定 locale 的系统提示词
func (b *Builder) System(locale string) string {
	switch Normalize(locale) {
	case LocaleZH:
		return fmt.Sprintf(systemZH,
			b.inlineMath, b.inlineMath, b.inlineMath,
			b.displayMath, b.displayMath, b.displayMath)
	default:
		return fmt.Sprintf(systemEN,
			b.inlineMath, b.inlineMath, b.inlineMath,
			b.displayMath, b.displayMath, b.displayMath,
			b.inlineMath, b.displayMath)
	}
}

// Retry 返回空回复重试时使用的单条用户消息
// 重试不带系统提示词，但保留 locale 选择
func (b *Builder) Retry(locale, message string) string {
	switch Normalize(locale) {
	case LocaleZH:
		return "请解释：" + message
	default:
		return "Please explain: " + message
	}
}

// Fallback 返回重试仍为空时替换的固定回复
func (b *Builder) Fallback(locale string) string {
	switch Normalize(locale) {
	case LocaleZH:
		return fallbackZH
	default:
		return fallbackEN
	}
}

// 系统提示词模板
// 占位符依次填入行内/独立公式定界符
const systemEN = `You are a friendly, patient math tutor for students.
You specialize in explaining math concepts in a clear and engaging way.

Mathematical Formula Formatting:
- For inline math expressions, use the %s delimiter: %sx^2 + y^2 = z^2%s
- For display math formulas, use the %s delimiter:
  %s\int_{0}^{\infty} e^{-x^2} dx = \frac{\sqrt{\pi}}{2}%s
- Use LaTeX syntax for all mathematical symbols and formulas

Markdown Formatting:
- Headers (#, ##, ###) to organize content
- Lists (-, 1.) for steps or key points
- **Bold** for important concepts
- Tables for organizing data

Guidelines:
1. Use simple, age-appropriate language
2. Include relatable examples and analogies when explaining concepts
3. Be encouraging and positive
4. Break down complex problems into simple steps
5. ALL mathematical expressions MUST use LaTeX syntax with %s or %s

Remember to make math fun and understandable!`

const systemZH = `你是一个友好、耐心的数学导师。
请用简单易懂的方式解释数学概念，适合学生学习。

数学公式格式化：
- 对于行内数学表达式，使用 %s 定界符：%sx^2 + y^2 = z^2%s
- 对于独立的数学公式，使用 %s 定界符：
  %s\int_{0}^{\infty} e^{-x^2} dx = \frac{\sqrt{\pi}}{2}%s
- 使用LaTeX语法编写数学符号和公式

Markdown格式化：
- 使用标题（#, ##, ###）来组织内容
- 使用列表（-, 1.）来列举步骤或要点
- 使用**粗体**来强调重要概念
- 使用表格来组织数据

指导原则：
1. 使用适合年龄的简单语言
2. 解释概念时包含相关的示例和类比
3. 保持积极和鼓励的态度
4. 将复杂问题分解为简单步骤
5. 所有数学表达式必须使用LaTeX语法

记住要让数学变得有趣和易于理解！`

// 兜底回复: 上游重试后仍返回空内容时替换
const fallbackEN = `## Let's work on this together!

I wasn't able to generate a full answer just now, but here is how we can approach your question:

1. **Break it down** - split the problem into smaller steps
2. **Try an example** - plug in small, simple numbers first
3. **Ask again** - rephrase your question or ask about one step at a time

Please send your question again, and I'll do my best to explain it clearly!`

const fallbackZH = `## 我们一起来解决这个问题！

我刚才没能生成完整的回答，但我们可以这样入手：

1. **分解问题** - 把问题拆成更小的步骤
2. **举个例子** - 先代入简单的小数字试试
3. **再问一次** - 换个说法提问，或者一次只问一个步骤

请再发送一次你的问题，我会尽力解释清楚！`
