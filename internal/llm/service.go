// Package llm implements the language oracle on top of the Anthropic client:
// intent classification, reply generation, slot disambiguation and meeting
// summaries, each as a single structured call.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/otl-fi/assistant/internal/anthropic"
	"github.com/otl-fi/assistant/internal/conversation"
)

// Completer is the slice of the Anthropic client the oracle needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
	CompleteJSON(ctx context.Context, system string, messages []anthropic.Message, maxTokens int, out any) error
}

type Service struct {
	llm         Completer
	threshold   float64
	websiteInfo string
	logger      *slog.Logger
}

// New builds the oracle. threshold gates classification confidence; below it
// the intent collapses to unsure rather than guessing.
func New(llm Completer, threshold float64, websiteInfo string, logger *slog.Logger) *Service {
	return &Service{
		llm:         llm,
		threshold:   threshold,
		websiteInfo: websiteInfo,
		logger:      logger,
	}
}

func (s *Service) Classify(ctx context.Context, userInput string, history []conversation.Message) (conversation.Intent, error) {
	intents := make([]string, len(conversation.AllIntents))
	for i, intent := range conversation.AllIntents {
		intents[i] = string(intent)
	}

	prompt := fmt.Sprintf(classifyUserPrompt, historyText(history), userInput, strings.Join(intents, ", "))

	var out struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	err := s.llm.CompleteJSON(ctx, classifySystemPrompt, []anthropic.Message{{Role: "user", Content: prompt}}, 256, &out)
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}

	intent := conversation.Intent(out.Intent)
	if !intent.Known() {
		return "", fmt.Errorf("classify intent: unknown intent %q", out.Intent)
	}
	if out.Confidence < s.threshold {
		s.logger.Info("low classification confidence, defaulting to unsure",
			"intent", out.Intent,
			"confidence", out.Confidence,
		)
		return conversation.IntentUnsure, nil
	}
	return intent, nil
}

func (s *Service) Generate(ctx context.Context, req conversation.GenerateRequest) (string, error) {
	lang := languageName(req.Language)

	switch req.Intent {
	case conversation.IntentRequestBooking:
		return s.bookingOffer(ctx, req)

	case conversation.IntentQuestionServices:
		offer := s.renderedBookingOffer(ctx, req)
		prompt := fmt.Sprintf("Provide a concise and helpful answer based on this information: %s. Reply in %s.\nInclude the booking template into the answer, translate it if needed.\n\nBOOKING TEMPLATE:\n%s",
			s.websiteInfo, lang, offer)
		return s.generateWithContext(ctx, prompt, req.History)

	case conversation.IntentGreeting:
		namePart := ""
		if req.UserName != "" {
			namePart = " " + req.UserName + ","
		}
		prompt := fmt.Sprintf("The user sent a greeting. Respond politely and greet the user%s ask how you can help them today. Reply in %s.", namePart, lang)
		return s.generateWithContext(ctx, prompt, req.History)

	case conversation.IntentProvideInfo:
		prompt := fmt.Sprintf("The user has provided some information: '%s'. Acknowledge receipt of the information. If this completes a previous request from you (e.g. asking for their email or name), confirm that. Decide the next natural step, which might be to proceed with a booking if that was the prior intent, or ask if there's anything else you can help with. Reply in %s.", req.UserInput, lang)
		return s.generateWithContext(ctx, prompt, req.History)

	case conversation.IntentFollowUp:
		prompt := fmt.Sprintf("The user is following up: '%s'. Check the conversation history to understand the context. Respond appropriately to their follow-up. If it's about a booking, re-iterate options or check status if possible. Reply in %s.", req.UserInput, lang)
		return s.generateWithContext(ctx, prompt, req.History)

	case conversation.IntentNotInterestedBuying:
		prompt := fmt.Sprintf("The user has indicated they are not interested in buying OTL.fi's services. Respond politely, thank them for their time, and perhaps mention they can reach out in the future if their needs change. Do not push for a booking. Reply in %s.", lang)
		return s.generateWithContext(ctx, prompt, req.History)

	case conversation.IntentInterestedSellingToUs:
		prompt := fmt.Sprintf("The user seems interested in SELLING their products/services TO OTL.fi. Politely inform them that OTL.fi is not currently looking to procure such services/products. Thank them for their interest. Do NOT offer to book a call for this intent. Reply in %s.", lang)
		return s.generateWithContext(ctx, prompt, req.History)

	case conversation.IntentUnsure:
		prompt := fmt.Sprintf("The user's intent is unclear from their message: '%s'. Politely ask for clarification on how you can help them. You can also offer the booking link (%s) if they'd like to discuss their needs with Olli. Reply in %s.", req.UserInput, req.BookingLink, lang)
		return s.generateWithContext(ctx, prompt, req.History)

	default:
		prompt := fmt.Sprintf("The user's intent was classified as '%s', but no specific response guidance is available. Use your best judgment to respond to '%s' based on the conversation history and general knowledge. If in doubt, apologize for the inconvenience and offer to book a call via %s. Reply in %s.", req.Intent, req.UserInput, req.BookingLink, lang)
		if req.ErrorMsg != "" {
			prompt += " Note: an internal step failed (" + req.ErrorMsg + "); apologize briefly and offer the booking link as a manual fallback, without exposing technical details."
		}
		return s.generateWithContext(ctx, prompt, req.History)
	}
}

func (s *Service) PickSlot(ctx context.Context, userInput string, history []conversation.Message, slots []conversation.Slot, now time.Time, feedback string) (conversation.SlotPick, error) {
	lines := make([]string, len(slots))
	for i, slot := range slots {
		lines[i] = fmt.Sprintf("- %s (instant: %s)", slot.Display, slot.Instant.Format(time.RFC3339))
	}

	system := fmt.Sprintf(pickSlotSystemPrompt, now.Format(time.RFC3339))
	prompt := fmt.Sprintf(pickSlotUserPrompt, userInput, strings.Join(lines, "\n"), feedback, historyText(history))

	var out struct {
		Instant    string  `json:"instant"`
		Confidence float64 `json:"confidence"`
	}
	err := s.llm.CompleteJSON(ctx, system, []anthropic.Message{{Role: "user", Content: prompt}}, 256, &out)
	if err != nil {
		return conversation.SlotPick{}, fmt.Errorf("pick slot: %w", err)
	}
	if out.Instant == "" {
		return conversation.SlotPick{Confidence: out.Confidence}, nil
	}

	instant, err := time.Parse(time.RFC3339, out.Instant)
	if err != nil {
		return conversation.SlotPick{}, fmt.Errorf("pick slot: malformed instant %q: %w", out.Instant, err)
	}
	return conversation.SlotPick{Instant: instant, Confidence: out.Confidence}, nil
}

func (s *Service) Summarize(ctx context.Context, userInput string, history []conversation.Message, lang string) (string, error) {
	target := "English"
	if lang == "fi" || strings.HasPrefix(lang, "fi-") {
		target = "Finnish"
	}
	prompt := fmt.Sprintf(summarizeUserPrompt, target, historyText(history), userInput)

	summary, err := s.llm.Complete(ctx, systemInstructions, []anthropic.Message{{Role: "user", Content: prompt}}, 256)
	if err != nil {
		return "", fmt.Errorf("summarize meeting: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// bookingOffer produces the availability message for a booking request.
// Supported languages use the fixed template without an oracle call; other
// languages get a freeform generation, falling back to the English template
// when the oracle is unavailable.
func (s *Service) bookingOffer(ctx context.Context, req conversation.GenerateRequest) (string, error) {
	if tmpl, ok := bookingTemplates[baseLang(req.Language)]; ok {
		return renderTemplate(tmpl, req.UserName, req.Slots, req.BookingLink), nil
	}

	prompt := fmt.Sprintf(freeformBookingPrompt, nameOrThere(req.UserName), slotList(req.Slots), req.BookingLink, languageName(req.Language))
	reply, err := s.llm.Complete(ctx, systemInstructions, []anthropic.Message{{Role: "user", Content: prompt}}, 1024)
	if err != nil {
		s.logger.Warn("freeform booking offer failed, falling back to English template", "error", err)
		return renderTemplate(bookingTemplates["en"], req.UserName, req.Slots, req.BookingLink), nil
	}
	return strings.TrimSpace(reply), nil
}

// renderedBookingOffer is bookingOffer without error surface, for embedding
// into a services answer.
func (s *Service) renderedBookingOffer(ctx context.Context, req conversation.GenerateRequest) string {
	offer, _ := s.bookingOffer(ctx, req)
	return offer
}

func (s *Service) generateWithContext(ctx context.Context, instruction string, history []conversation.Message) (string, error) {
	prompt := "Conversation history:\n" + historyText(history) + "\n\n" + instruction
	reply, err := s.llm.Complete(ctx, systemInstructions, []anthropic.Message{{Role: "user", Content: prompt}}, 1024)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func renderTemplate(tmpl, userName string, slots []conversation.Slot, link string) string {
	return fmt.Sprintf(tmpl, nameOrThere(userName), slotList(slots), link)
}

func slotList(slots []conversation.Slot) string {
	if len(slots) == 0 {
		return "(No available slots)"
	}
	lines := make([]string, len(slots))
	for i, slot := range slots {
		lines[i] = "- " + slot.Display
	}
	return strings.Join(lines, "\n")
}

func nameOrThere(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func historyText(history []conversation.Message) string {
	if len(history) == 0 {
		return "No previous conversation."
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		if msg.Role == conversation.RoleSystem {
			continue
		}
		lines = append(lines, string(msg.Role)+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func baseLang(lang string) string {
	lang = strings.ToLower(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i]
	}
	return lang
}

var languageNames = map[string]string{
	"en": "English",
	"fi": "Finnish",
	"sv": "Swedish",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"nl": "Dutch",
}

func languageName(lang string) string {
	if name, ok := languageNames[baseLang(lang)]; ok {
		return name
	}
	if lang == "" {
		return "English"
	}
	return lang
}
