package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/metrics"
	"github.com/xaenox/gift-bot/internal/models"
	"github.com/xaenox/gift-bot/internal/storage"
)

const (
	maxFileBytes   = 10 << 20
	historyReports = 5
	shownKeywords  = 5
)

// Recommender runs the recommendation pipeline over a chat export.
type Recommender interface {
	Recommend(ctx context.Context, r io.Reader) ([]models.GroupRecommendation, error)
}

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api      botAPI
	storage  storage.Storage
	pipeline Recommender
	client   *http.Client
	logger   *zap.Logger
}

func New(token string, debug bool, storage storage.Storage, pipeline Recommender, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug

	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))
	return newBot(api, storage, pipeline, logger), nil
}

func newBot(api botAPI, storage storage.Storage, pipeline Recommender, logger *zap.Logger) *Bot {
	return &Bot{
		api:      api,
		storage:  storage,
		pipeline: pipeline,
		client:   &http.Client{},
		logger:   logger,
	}
}

// Start handles updates until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if message.Document != nil {
		b.handleDocument(ctx, message)
		return
	}

	b.sendMessage(message.Chat.ID, "카카오톡 대화 내보내기 파일(.txt)을 보내 주세요. /help 로 사용법을 볼 수 있어요.")
}

func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) {
	// anonymous admins and channel posts carry no sender
	if message.From == nil {
		b.logger.Debug("Ignoring document without sender", zap.Int64("chat_id", message.Chat.ID))
		return
	}
	doc := message.Document
	log := b.logger.With(
		zap.Int64("user_id", message.From.ID),
		zap.String("file_name", doc.FileName))

	if doc.FileSize > maxFileBytes {
		b.sendErrorMessage(message.Chat.ID, "파일이 너무 커요. 10MB 이하의 대화 파일을 보내 주세요.")
		return
	}

	content, err := b.download(ctx, doc.FileID)
	if err != nil {
		log.Error("Failed to download document", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "파일을 받지 못했어요. 다시 시도해 주세요.")
		return
	}

	upload := &models.Upload{
		UserID:   message.From.ID,
		Filename: doc.FileName,
		Content:  content,
	}
	if err := b.storage.SaveUpload(ctx, upload); err != nil {
		log.Error("Failed to save upload", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "파일을 저장하지 못했어요. 다시 시도해 주세요.")
		return
	}
	metrics.UploadsTotal.WithLabelValues("telegram").Inc()

	b.sendMessage(message.Chat.ID, "대화를 분석하고 있어요. 잠시만 기다려 주세요.")

	recs, err := b.pipeline.Recommend(ctx, bytes.NewReader(content))
	if err != nil {
		log.Error("Failed to analyze document", zap.String("file_id", upload.ID), zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "대화 파일을 읽을 수 없어요. 카카오톡 내보내기 형식인지 확인해 주세요.")
		return
	}
	if len(recs) == 0 {
		b.sendMessage(message.Chat.ID, "분석할 수 있는 대화가 없어요.")
		return
	}

	if err := b.storage.SaveReports(ctx, reportsFor(upload, recs)); err != nil {
		log.Error("Failed to save reports", zap.String("file_id", upload.ID), zap.Error(err))
	}

	for _, rec := range recs {
		b.sendMarkdown(message.Chat.ID, message.MessageID, formatRecommendation(rec))
	}
	log.Info("Document analyzed", zap.String("file_id", upload.ID), zap.Int("dates", len(recs)))
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
}

// reportsFor keeps one report per successfully analyzed date.
func reportsFor(upload *models.Upload, recs []models.GroupRecommendation) []*models.Report {
	var reports []*models.Report
	for _, rec := range recs {
		a := rec.Analysis
		if a.Err != nil {
			continue
		}

		keywords := make([]string, 0, shownKeywords)
		for i, k := range a.Keywords {
			if i == shownKeywords {
				break
			}
			keywords = append(keywords, k.Name)
		}
		products := make([]string, 0, len(rec.Items))
		for _, item := range rec.Items {
			products = append(products, item.Name)
		}

		reports = append(reports, &models.Report{
			FileID:   upload.ID,
			UserID:   upload.UserID,
			Date:     a.Date,
			Subject:  a.Subject,
			Category: a.Category,
			Intimacy: a.Intimacy,
			Keywords: keywords,
			Products: products,
		})
	}
	return reports
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `선물 추천 봇이에요! 🎁
카카오톡 대화 내보내기 파일을 보내 주시면 날짜별로 대화 주제, 친밀도, 관심 키워드를 분석해서 선물을 추천해 드려요.

/help 로 사용법을 볼 수 있어요.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `사용 가능한 명령어:
/start - 봇 시작
/help - 도움말 보기
/history - 최근 분석 결과 보기

카카오톡 대화방 메뉴의 "대화 내보내기"로 만든 .txt 파일을 이 채팅에 보내 주세요.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "history":
		b.handleHistory(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "알 수 없는 명령어예요. /help 로 사용법을 확인해 주세요.")
	}
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	reports, err := b.storage.GetUserReports(ctx, message.From.ID, historyReports, 0)
	if err != nil {
		b.logger.Error("Failed to get user reports",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "분석 기록을 불러오지 못했어요.")
		return
	}

	if len(reports) == 0 {
		b.sendMessage(message.Chat.ID, "아직 분석 기록이 없어요.")
		return
	}

	b.sendMarkdown(message.Chat.ID, 0, formatHistory(reports))
}

func formatRecommendation(rec models.GroupRecommendation) string {
	a := rec.Analysis
	var sb strings.Builder

	fmt.Fprintf(&sb, "📅 *%s*\n", escapeMarkdown(a.Date))
	if a.Err != nil {
		sb.WriteString(escapeMarkdown("이 날짜의 대화는 분석하지 못했어요."))
		return sb.String()
	}

	fmt.Fprintf(&sb, "*주제:* %s\n", escapeMarkdown(a.Subject))
	fmt.Fprintf(&sb, "*대분류:* %s\n", escapeMarkdown(a.Category))
	fmt.Fprintf(&sb, "*친밀도:* %s\n", escapeMarkdown(fmt.Sprintf("%.2f", a.Intimacy)))

	if len(a.Keywords) > 0 {
		tags := make([]string, 0, shownKeywords)
		for i, k := range a.Keywords {
			if i == shownKeywords {
				break
			}
			tags = append(tags, escapeMarkdown("#"+strings.ReplaceAll(k.Name, " ", "_")))
		}
		fmt.Fprintf(&sb, "*키워드:* %s\n", strings.Join(tags, " "))
	}

	if len(rec.Items) == 0 {
		sb.WriteString("\n" + escapeMarkdown("추천할 상품을 찾지 못했어요."))
		return sb.String()
	}

	sb.WriteString("\n🎁 *추천 TOP 5*\n")
	for i, item := range rec.Items {
		line := fmt.Sprintf("%d. %s | 가격: %s", i+1, item.Name, item.Price)
		sb.WriteString(escapeMarkdown(line))
		if item.Description != nil && *item.Description != "" {
			fmt.Fprintf(&sb, " [%s](%s)", escapeMarkdown("링크"), escapeLinkURL(*item.Description))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatHistory(reports []*models.Report) string {
	var sb strings.Builder
	sb.WriteString("*최근 분석 결과:*\n\n")
	for _, r := range reports {
		fmt.Fprintf(&sb, "*%s* %s\n", escapeMarkdown(r.Date), escapeMarkdown(r.Subject+" / "+r.Category))
		if len(r.Keywords) > 0 {
			tags := make([]string, len(r.Keywords))
			for i, k := range r.Keywords {
				tags[i] = escapeMarkdown("#" + strings.ReplaceAll(k, " ", "_"))
			}
			fmt.Fprintf(&sb, "키워드: %s\n", strings.Join(tags, " "))
		}
		if len(r.Products) > 0 {
			fmt.Fprintf(&sb, "_%s_\n", escapeMarkdown(strings.Join(r.Products, ", ")))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

// inside (...) of an inline link only ')' and '\' need escaping
func escapeLinkURL(url string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"
	msg.ReplyToMessageID = replyToID
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send formatted message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
