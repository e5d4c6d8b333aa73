package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/app"
	"github.com/suseoaa/oaacore/internal/checkin"
	"github.com/suseoaa/oaacore/internal/gpa"
	"github.com/suseoaa/oaacore/internal/models"
	"github.com/suseoaa/oaacore/internal/update"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "0.0.0"

const usage = `usage: oaacli [-config config.toml] <command> [args]

commands:
  accounts                        list stored accounts
  add <student> <password>        verify a portal login and store the account
  sync [student]                  sync one account, or all of them
  gpa <student> [-degree]         credit-weighted GPA from cached grades
  checkin-login <student> <pass>  password login for the check-in host
  checkin-qr                      WeChat QR login for the check-in host
  checkin <student> [-location]   submit today's pending check-in tasks
  update                          check GitHub for a newer release
`

func main() {
	configPath := flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to start service: %v", err)
	}
	defer service.Close()

	ctx := context.Background()

	switch args[0] {
	case "accounts":
		runAccounts(service)
	case "add":
		runAdd(ctx, service, args[1:])
	case "sync":
		runSync(ctx, service, args[1:])
	case "gpa":
		runGPA(service, args[1:])
	case "checkin-login":
		runCheckinLogin(ctx, service, args[1:])
	case "checkin-qr":
		runCheckinQR(ctx, service)
	case "checkin":
		runCheckin(ctx, service, args[1:])
	case "update":
		runUpdate(ctx, service)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runAccounts(service *app.Service) {
	accounts, err := service.Store.ListAccounts()
	if err != nil {
		logger.Error.Fatalf("Failed to list accounts: %v", err)
	}
	if len(accounts) == 0 {
		fmt.Println("no accounts stored")
		return
	}
	for _, a := range accounts {
		fmt.Printf("%s\t%s\t%s %s\n", a.StudentID, a.Name, a.College, a.Major)
	}
}

// runAdd verifies the credentials against the portal before anything is
// stored, a typo'd password would otherwise poison every later sync.
func runAdd(ctx context.Context, service *app.Service, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	college := fs.String("college", "", "college name")
	major := fs.String("major", "", "major name")
	jgID := fs.String("jg", "", "college id (jg_id)")
	zyhID := fs.String("zyh", "", "major id (zyh_id)")
	njdmID := fs.String("njdm", "", "entry year (njdm_id)")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		logger.Error.Fatalf("usage: oaacli add [flags] <student> <password>")
	}
	studentID, password := rest[0], rest[1]

	client, err := service.PortalClient()
	if err != nil {
		logger.Error.Fatalf("Failed to build portal client: %v", err)
	}
	if err := client.Login(ctx, studentID, password); err != nil {
		logger.Error.Fatalf("Login failed: %v", err)
	}

	entryYear := *njdmID
	if entryYear == "" && len(studentID) >= 4 {
		// student ids start with the entry year
		entryYear = studentID[:4]
	}

	account := &models.Account{
		StudentID: studentID,
		Password:  password,
		Name:      *name,
		College:   *college,
		Major:     *major,
		JgID:      *jgID,
		ZyhID:     *zyhID,
		NjdmID:    entryYear,
		CreatedAt: time.Now().Unix(),
	}
	if err := account.Validate(); err != nil {
		logger.Error.Fatalf("Invalid account: %v", err)
	}
	if err := service.Store.UpsertAccount(account); err != nil {
		logger.Error.Fatalf("Failed to store account: %v", err)
	}

	fmt.Printf("stored account %s\n", studentID)
}

func runSync(ctx context.Context, service *app.Service, args []string) {
	if len(args) == 0 {
		service.SyncAll(ctx)
		return
	}

	account, err := service.Store.GetAccount(args[0])
	if err != nil {
		logger.Error.Fatalf("Failed to get account: %v", err)
	}
	if account == nil {
		logger.Error.Fatalf("Unknown account %s", args[0])
	}
	if err := service.SyncAccount(ctx, account); err != nil {
		logger.Error.Fatalf("Sync failed: %v", err)
	}
	fmt.Println("sync ok")
}

func runGPA(service *app.Service, args []string) {
	fs := flag.NewFlagSet("gpa", flag.ExitOnError)
	degreeOnly := fs.Bool("degree", false, "count only degree courses from the teaching plan")
	fs.Parse(args)

	if fs.NArg() != 1 {
		logger.Error.Fatalf("usage: oaacli gpa <student> [-degree]")
	}
	studentID := fs.Arg(0)

	grades, err := service.Store.ListGrades(studentID)
	if err != nil {
		logger.Error.Fatalf("Failed to list grades: %v", err)
	}

	var degreeKeys map[string]bool
	if *degreeOnly {
		plan, err := service.Store.ListPlanCourses(studentID)
		if err != nil {
			logger.Error.Fatalf("Failed to list plan courses: %v", err)
		}
		degreeKeys = gpa.DegreeKeys(plan)
	}

	result := gpa.Calculate(grades, degreeKeys)
	fmt.Printf("GPA %.4f, average %.2f over %d courses (%.1f credits)\n",
		result.GPA, result.AverageScore, result.Courses, result.TotalCredits)
}

func runCheckinLogin(ctx context.Context, service *app.Service, args []string) {
	if len(args) != 2 {
		logger.Error.Fatalf("usage: oaacli checkin-login <student> <password>")
	}
	studentID, password := args[0], args[1]

	client, err := service.CheckinClient()
	if err != nil {
		logger.Error.Fatalf("Failed to build checkin client: %v", err)
	}

	captcha, err := client.FetchCaptcha(ctx)
	if err != nil {
		logger.Error.Fatalf("Failed to fetch captcha: %v", err)
	}

	code := ""
	if captcha != nil {
		if err := os.WriteFile("captcha.jpg", captcha.Image, 0o644); err != nil {
			logger.Error.Fatalf("Failed to write captcha.jpg: %v", err)
		}
		code = prompt("captcha written to captcha.jpg, enter code: ")
	}

	if err := client.LoginWithPassword(ctx, studentID, password, code, captcha); err != nil {
		logger.Error.Fatalf("Login failed: %v", err)
	}

	storeCheckinAccount(service, studentID, password, "", models.CheckinLoginPassword)
	fmt.Printf("checkin login ok for %s\n", studentID)
}

func runCheckinQR(ctx context.Context, service *app.Service) {
	client, err := service.CheckinClient()
	if err != nil {
		logger.Error.Fatalf("Failed to build checkin client: %v", err)
	}

	clientID, err := client.FetchClientID(ctx)
	if err != nil {
		logger.Error.Fatalf("Failed to fetch client id: %v", err)
	}
	qr, err := client.FetchQRCode(ctx, clientID)
	if err != nil {
		logger.Error.Fatalf("Failed to fetch QR code: %v", err)
	}

	if img := decodeDataURI(qr.Image); img != nil {
		if err := os.WriteFile("qrcode.png", img, 0o644); err != nil {
			logger.Error.Fatalf("Failed to write qrcode.png: %v", err)
		}
		fmt.Printf("QR code written to qrcode.png, valid for %d minutes. Scan it with WeChat.\n", qr.Minutes)
	} else {
		fmt.Printf("open this URL to show the QR code: %s\n", qr.URL)
	}

	status, err := client.WaitForScan(ctx, clientID, time.Duration(qr.Minutes)*time.Minute, 2*time.Second, func() {
		fmt.Println("scanned, waiting for confirmation...")
	})
	if err != nil {
		logger.Error.Fatalf("QR login failed: %v", err)
	}
	if err := client.CompleteQRLogin(ctx, status.CallbackURL); err != nil {
		logger.Error.Fatalf("Failed to complete QR login: %v", err)
	}

	studentID := client.StudentID()
	storeCheckinAccount(service, studentID, "", client.UserName(), models.CheckinLoginQRCode)
	fmt.Printf("checkin QR login ok for %s\n", studentID)
}

func storeCheckinAccount(service *app.Service, studentID, password, name string, loginType int64) {
	existing, err := service.Store.GetCheckinAccount(studentID)
	if err != nil {
		logger.Error.Fatalf("Failed to get checkin account: %v", err)
	}

	account := &models.CheckinAccount{
		StudentID: studentID,
		Password:  password,
		Name:      name,
		LoginType: loginType,
		Location:  checkin.LocationA4.Name,
	}
	if existing != nil {
		if account.Name == "" {
			account.Name = existing.Name
		}
		account.Remark = existing.Remark
		account.Location = existing.Location
		account.SortIndex = existing.SortIndex
	}

	if err := service.Store.UpsertCheckinAccount(account); err != nil {
		logger.Error.Fatalf("Failed to store checkin account: %v", err)
	}
}

// runCheckin submits every pending task of the account using the saved
// session. It never logs in by itself: run checkin-login or checkin-qr
// first.
func runCheckin(ctx context.Context, service *app.Service, args []string) {
	fs := flag.NewFlagSet("checkin", flag.ExitOnError)
	location := fs.String("location", "", "check-in location name")
	fs.Parse(args)

	if fs.NArg() != 1 {
		logger.Error.Fatalf("usage: oaacli checkin <student> [-location name]")
	}

	results, err := service.SubmitCheckins(ctx, fs.Arg(0), *location)
	if err != nil {
		logger.Error.Fatalf("Check-in failed: %v", err)
	}
	if len(results) == 0 {
		fmt.Println("no pending tasks")
		return
	}
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("%s: %s (%v)\n", res.Task, res.Status, res.Err)
			continue
		}
		fmt.Printf("%s: %s\n", res.Task, res.Status)
	}
}

func runUpdate(ctx context.Context, service *app.Service) {
	checker := update.NewChecker(service.Config.Update.Repo)
	release, err := checker.Check(ctx, version)
	if err != nil {
		logger.Error.Fatalf("Update check failed: %v", err)
	}
	if release == nil {
		fmt.Printf("up to date (%s)\n", version)
		return
	}

	fmt.Printf("new release %s available\n", release.TagName)
	for _, asset := range release.Assets {
		fmt.Printf("  %s\n", asset.DownloadURL)
	}
}

func prompt(msg string) string {
	fmt.Print(msg)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

// decodeDataURI strips a data:image/...;base64, prefix and decodes the
// rest. Returns nil when the payload is not inline image data.
func decodeDataURI(s string) []byte {
	if s == "" {
		return nil
	}
	if i := strings.Index(s, ","); i >= 0 && strings.Contains(s[:i], "base64") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return data
}
