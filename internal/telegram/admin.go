package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mshv/pillbot/internal/export"
)

// sqliteMagic is the 16-byte header every SQLite database file starts with.
var sqliteMagic = []byte("SQLite format 3\x00")

// --- Voice memo administration ---

func (r *Router) handleMemoUpload(ctx context.Context, chatID, userID int64, username, fileID string) {
	memoID, err := r.repo.AddVoiceMemo(ctx, fileID)
	if err != nil {
		r.log.Error("add voice memo failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not save the memo.")
		return
	}
	r.logInteraction(ctx, userID, username, "voice_memo_added", fmt.Sprintf("%d", memoID))
	r.sendText(chatID, fmt.Sprintf("✅ Memo saved (id=%d).\nUsers get it via the \"%s\" button.", memoID, btnMemo))
}

func (r *Router) handleMemoList(ctx context.Context, chatID, userID int64, text string) {
	if !r.isAdmin(userID) {
		return
	}

	limit := 10
	if args := strings.Fields(text); len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	memos, err := r.repo.ListVoiceMemos(ctx, limit)
	if err != nil {
		r.log.Error("list memos failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not list memos.")
		return
	}
	if len(memos) == 0 {
		r.sendText(chatID, "No memos yet.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d memos (newest first):\n", len(memos))
	for _, m := range memos {
		fmt.Fprintf(&b, "• id=%d — %s\n", m.ID, m.CreatedAt.Format("02.01.2006 15:04"))
	}
	b.WriteString("\nDelete with /memo_delete <id>")
	r.sendText(chatID, b.String())
}

func (r *Router) handleMemoDelete(ctx context.Context, chatID, userID int64, text string) {
	if !r.isAdmin(userID) {
		return
	}

	args := strings.Fields(text)
	if len(args) < 2 {
		r.sendText(chatID, "Usage: /memo_delete <id>")
		return
	}
	memoID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		r.sendText(chatID, "id must be a number, e.g. /memo_delete 12")
		return
	}

	ok, err := r.repo.DeleteVoiceMemo(ctx, memoID)
	if err != nil {
		r.log.Error("delete memo failed", zap.Int64("memo_id", memoID), zap.Error(err))
		r.sendText(chatID, "❌ Could not delete the memo.")
		return
	}
	if ok {
		r.sendText(chatID, fmt.Sprintf("✅ Deleted memo id=%d.", memoID))
	} else {
		r.sendText(chatID, fmt.Sprintf("No memo with id=%d.", memoID))
	}
}

// --- Database backup / restore ---

func (r *Router) handleDBBackup(chatID, userID int64) {
	if !r.isAdmin(userID) {
		return
	}
	if _, err := os.Stat(r.cfg.DBPath); err != nil {
		r.sendText(chatID, "Database file not found.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(r.cfg.DBPath))
	if _, err := r.bot.Send(doc); err != nil {
		r.log.Error("db backup send failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not send the database file.")
	}
}

func (r *Router) handleDBRestore(chatID, userID int64) {
	if !r.isAdmin(userID) {
		return
	}
	r.setPending(chatID, pendingRestore)
	r.sendText(chatID,
		"Send me a SQLite *.db file as a document and I will swap it in.\n"+
			"The current database is kept as a timestamped backup.\n\n"+
			"Important: restart the bot after the restore.")
}

func (r *Router) handleRestoreDocument(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	name := strings.ToLower(doc.FileName)
	if name != "" && !strings.HasSuffix(name, ".db") {
		r.sendText(chatID, "Please send a file with the .db extension.")
		return
	}

	uploadPath := r.cfg.DBPath + ".upload"
	if err := r.downloadFile(ctx, doc.FileID, uploadPath); err != nil {
		r.log.Error("restore download failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not download the file.")
		return
	}

	if !looksLikeSQLite(uploadPath) {
		_ = os.Remove(uploadPath)
		r.sendText(chatID, "The file does not look like a SQLite database. Aborting.")
		return
	}

	backupPath := fmt.Sprintf("%s.backup-%s.db", r.cfg.DBPath, time.Now().Format("20060102-150405"))
	if _, err := os.Stat(r.cfg.DBPath); err == nil {
		if err := os.Rename(r.cfg.DBPath, backupPath); err != nil {
			_ = os.Remove(uploadPath)
			r.log.Error("restore backup rename failed", zap.Error(err))
			r.sendText(chatID, "❌ Could not back up the current database. Aborting.")
			return
		}
	}
	if err := os.Rename(uploadPath, r.cfg.DBPath); err != nil {
		r.log.Error("restore swap failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not swap the database file.")
		return
	}

	r.clearPending(chatID)
	r.sendText(chatID, fmt.Sprintf(
		"✅ Database restored. The old file is kept as %s.\nRestart the bot now.",
		backupPath,
	))
}

// downloadFile fetches a Telegram file by id into the given path.
func (r *Router) downloadFile(ctx context.Context, fileID, path string) error {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func looksLikeSQLite(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, sqliteMagic)
}

// --- Export ---

func (r *Router) handleExport(ctx context.Context, chatID, userID int64, username string) {
	if !r.isAdmin(userID) {
		return
	}

	path, err := export.WriteWorkbook(ctx, r.repo, os.TempDir())
	if err != nil {
		r.log.Error("export failed", zap.Error(err))
		r.sendText(chatID, "❌ Export failed: "+err.Error())
		return
	}
	defer os.Remove(path)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = "📊 Bot data export: users, confirmations, interaction log."
	if _, err := r.bot.Send(doc); err != nil {
		r.log.Error("export send failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not send the export file.")
		return
	}
	r.logInteraction(ctx, userID, username, "data_exported", "")
}
