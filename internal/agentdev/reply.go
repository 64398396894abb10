package agentdev

import (
	"fmt"
	"strings"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/llm"
	"github.com/capitalize-ai/tour-assistant/internal/model"
)

const noMatchReply = "Mình chưa tìm thấy tour phù hợp. Bạn cho mình biết thêm điểm đến, ngân sách hoặc số ngày dự kiến nhé?"

// composeReply writes the scripted answer. Each tour sits on its own line as
// **Name** - price VNĐ so storefront clients can pick it out of the text.
func composeReply(tours []model.TourPackage) string {
	if len(tours) == 0 {
		return noMatchReply
	}
	var b strings.Builder
	b.WriteString("Dưới đây là một số tour phù hợp với bạn:\n\n")
	for i, t := range tours {
		fmt.Fprintf(&b, "%d. **%s** - %s VNĐ (%d ngày)\n", i+1, t.Name, model.FormatVND(t.Price), t.DurationDays)
	}
	b.WriteString("\nBạn muốn mình giữ chỗ tour nào?")
	return b.String()
}

func systemPrompt(tours []model.TourPackage) string {
	var b strings.Builder
	b.WriteString("You are the booking assistant of a Vietnamese tour operator. Reply in the user's language and keep answers short. ")
	b.WriteString("When you recommend a tour, put it on its own line as **Tour name** - price VNĐ.")
	if len(tours) > 0 {
		b.WriteString("\nTours available for this request:\n")
		for _, t := range tours {
			fmt.Fprintf(&b, "- %s, %s, %d days, %s VNĐ\n", t.Name, t.Destination, t.DurationDays, model.FormatVND(t.Price))
		}
	} else {
		b.WriteString("\nNo catalog tour matches this request; ask for destination, budget and trip length.")
	}
	return b.String()
}

// history converts stored messages for the model. Error turns are skipped.
func history(msgs []agent.RoomMessage) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.IsError || m.Content == "" {
			continue
		}
		out = append(out, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func sources(tours []model.TourPackage) []model.Source {
	var out []model.Source
	for _, t := range tours {
		if t.URL != "" {
			out = append(out, model.Source{Title: t.Name, URL: t.URL})
		}
	}
	return out
}
