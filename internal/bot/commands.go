package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/checkin"
	"github.com/suseoaa/oaacore/internal/gpa"
)

const (
	guestHelp = `可用命令:
/help - 显示此消息`

	adminHelp = `可用命令:
/accounts - 已保存的账号列表
/gpa <学号> [degree] - 查询绩点, degree 表示只算学位课
/grades <学号> - 最近的成绩
/exams <学号> - 考试安排
/sync <学号|all> - 立即同步
/tasks <学号> - 待签到任务
/checkin <学号> [地点] - 执行签到
/help - 显示此消息

示例:
/gpa 22201010123 degree
/checkin 22201010123 计算机学院`
)

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeOpenCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start": b.handleStart,
		"help":  b.handleHelp,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"accounts": b.handleAccounts,
		"gpa":      b.handleGPA,
		"grades":   b.handleGrades,
		"exams":    b.handleExams,
		"sync":     b.handleSync,
		"tasks":    b.handleTasks,
		"checkin":  b.handleCheckin,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routeOpenCommands(cmd); ok {
		if err := handler(msg); err != nil {
			logger.Error.Printf("Command error: %v", err)
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("出错了: %v", err))
		}
		return
	}

	if b.admins[msg.From.ID] {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			if err := handler(msg); err != nil {
				logger.Error.Printf("Command error: %v", err)
				b.sendMessage(msg.Chat.ID, fmt.Sprintf("出错了: %v", err))
			}
		}
		return
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	var text string
	if b.admins[msg.From.ID] {
		text = adminHelp
	} else {
		text = guestHelp
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "发送 /help 查看可用命令。")
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "你好! 我是教务助手。\n\n"
	if b.admins[msg.From.ID] {
		text += "你是管理员, 发送 /help 查看命令。"
	} else {
		text += "这个机器人只为管理员服务。"
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleAccounts(msg *tgbotapi.Message) error {
	accounts, err := b.service.Store.ListAccounts()
	if err != nil {
		return fmt.Errorf("查询账号失败: %v", err)
	}

	if len(accounts) == 0 {
		return b.sendMessage(msg.Chat.ID, "还没有保存任何账号")
	}

	var out strings.Builder
	out.WriteString("已保存的账号:\n\n")
	for _, a := range accounts {
		out.WriteString(fmt.Sprintf("👤 %s %s\n%s %s\n\n", a.StudentID, a.Name, a.College, a.Major))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) handleGPA(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "使用方法: /gpa <学号> [degree]")
	}
	studentID := args[0]
	degreeOnly := len(args) > 1 && args[1] == "degree"

	grades, err := b.service.Store.ListGrades(studentID)
	if err != nil {
		return fmt.Errorf("查询成绩失败: %v", err)
	}

	var degreeKeys map[string]bool
	if degreeOnly {
		plan, err := b.service.Store.ListPlanCourses(studentID)
		if err != nil {
			return fmt.Errorf("查询培养方案失败: %v", err)
		}
		degreeKeys = gpa.DegreeKeys(plan)
	}

	result := gpa.Calculate(grades, degreeKeys)
	scope := "全部课程"
	if degreeOnly {
		scope = "学位课程"
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf(
		"%s 的绩点 (%s):\n\nGPA: %.4f\n加权平均分: %.2f\n课程数: %d\n总学分: %.1f",
		studentID, scope,
		result.GPA,
		result.AverageScore,
		result.Courses,
		result.TotalCredits,
	))
}

// handleGrades shows the most recent term that has any grades.
func (b *Bot) handleGrades(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		return b.sendMessage(msg.Chat.ID, "使用方法: /grades <学号>")
	}
	studentID := args[0]

	grades, err := b.service.Store.ListGrades(studentID)
	if err != nil {
		return fmt.Errorf("查询成绩失败: %v", err)
	}
	if len(grades) == 0 {
		return b.sendMessage(msg.Chat.ID, "没有成绩记录, 先执行 /sync")
	}

	last := grades[len(grades)-1]
	var out strings.Builder
	out.WriteString(fmt.Sprintf("%s 学年 %s 学期:\n\n", last.Year, last.Term))
	for _, g := range grades {
		if g.Year != last.Year || g.Term != last.Term {
			continue
		}
		out.WriteString(fmt.Sprintf("📖 %s: %s (学分 %s)\n", g.CourseName, g.Score, g.Credit))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) handleExams(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		return b.sendMessage(msg.Chat.ID, "使用方法: /exams <学号>")
	}

	exams, err := b.service.Store.ListExams(args[0])
	if err != nil {
		return fmt.Errorf("查询考试失败: %v", err)
	}
	if len(exams) == 0 {
		return b.sendMessage(msg.Chat.ID, "没有考试安排")
	}

	var out strings.Builder
	out.WriteString("考试安排:\n\n")
	for _, e := range exams {
		out.WriteString(fmt.Sprintf("📝 %s\n🕐 %s\n📍 %s\n\n", e.CourseName, e.Time, e.Location))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) handleSync(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		return b.sendMessage(msg.Chat.ID, "使用方法: /sync <学号|all>")
	}

	ctx := context.Background()
	if args[0] == "all" {
		b.service.SyncAll(ctx)
		return b.sendMessage(msg.Chat.ID, "✅ 全部账号同步完成")
	}

	account, err := b.service.Store.GetAccount(args[0])
	if err != nil {
		return fmt.Errorf("查询账号失败: %v", err)
	}
	if account == nil {
		return fmt.Errorf("没有找到账号 %s", args[0])
	}
	if err := b.service.SyncAccount(ctx, account); err != nil {
		return fmt.Errorf("同步失败: %v", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ %s 同步完成", args[0]))
}

func (b *Bot) handleTasks(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		return b.sendMessage(msg.Chat.ID, "使用方法: /tasks <学号>")
	}
	studentID := args[0]

	client, err := b.service.CheckinClient()
	if err != nil {
		return err
	}
	restored, err := client.RestoreSession(context.Background(), studentID)
	if err != nil {
		return err
	}
	if !restored {
		return fmt.Errorf("%s 没有有效的签到会话, 请先登录", studentID)
	}

	tasks, err := client.ListTasks(context.Background(), checkin.TaskPending)
	if err != nil {
		return fmt.Errorf("查询任务失败: %v", err)
	}
	if len(tasks) == 0 {
		return b.sendMessage(msg.Chat.ID, "没有待签到任务 🎉")
	}

	var out strings.Builder
	out.WriteString("待签到任务:\n\n")
	for _, t := range tasks {
		out.WriteString(fmt.Sprintf("📋 %s\n🕐 %s-%s\n\n", t.Name, t.StartTime, t.EndTime))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) handleCheckin(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "使用方法: /checkin <学号> [地点]")
	}
	studentID := args[0]
	location := ""
	if len(args) > 1 {
		location = args[1]
	}

	results, err := b.service.SubmitCheckins(context.Background(), studentID, location)
	if err != nil {
		return fmt.Errorf("签到失败: %v", err)
	}
	if len(results) == 0 {
		return b.sendMessage(msg.Chat.ID, "没有待签到任务 🎉")
	}

	var out strings.Builder
	for _, res := range results {
		switch {
		case res.Err != nil:
			out.WriteString(fmt.Sprintf("❌ %s: %v\n", res.Task, res.Err))
		case res.Status == "signed":
			out.WriteString(fmt.Sprintf("✅ %s: 签到成功\n", res.Task))
		default:
			out.WriteString(fmt.Sprintf("ℹ️ %s: %s\n", res.Task, res.Status))
		}
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
