package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contact-book-api/internal/repository"
	"github.com/noah-isme/contact-book-api/internal/service"
	"github.com/noah-isme/contact-book-api/pkg/cache"
	"github.com/noah-isme/contact-book-api/pkg/config"
	"github.com/noah-isme/contact-book-api/pkg/database"
	"github.com/noah-isme/contact-book-api/pkg/logger"
	"github.com/noah-isme/contact-book-api/pkg/validation"
)

func main() {
	var (
		teachersPath string
		studentsPath string
		timeout      time.Duration
	)

	flag.StringVar(&teachersPath, "teachers", "", "Path to the teacher roster workbook (.xlsx)")
	flag.StringVar(&studentsPath, "students", "", "Path to the student roster workbook (.xlsx)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Import timeout")
	flag.Parse()

	if teachersPath == "" && studentsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	validator := validation.New()
	cacheSvc := service.NewCacheService(cacheRepo, nil, cfg.Cache.DirectoryTTL, logr, cacheRepo.Enabled())
	directorySvc := service.NewDirectoryService(teacherRepo, studentRepo, cacheSvc, cfg.Cache.DirectoryTTL, validator, logr)
	importer := service.NewRosterImportService(teacherRepo, studentRepo, repository.NewAccountRepository(db), directorySvc, validator, logr)

	var teachers, students io.Reader
	if teachersPath != "" {
		f, err := os.Open(teachersPath)
		if err != nil {
			log.Fatalf("failed to open teacher roster: %v", err)
		}
		defer f.Close()
		teachers = f
	}
	if studentsPath != "" {
		f, err := os.Open(studentsPath)
		if err != nil {
			log.Fatalf("failed to open student roster: %v", err)
		}
		defer f.Close()
		students = f
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := importer.Import(ctx, teachers, students)
	if err != nil {
		logr.Fatal("roster import failed", zap.Error(err))
	}

	fmt.Printf("teachers upserted: %d\nstudents upserted: %d\n", result.TeachersUpserted, result.StudentsUpserted)

	if len(result.RowErrors) > 0 {
		fmt.Printf("\nskipped rows: %d\n", len(result.RowErrors))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SHEET\tROW\tPROBLEM")
		for _, rowErr := range result.RowErrors {
			fmt.Fprintf(w, "%s\t%d\t%s\n", rowErr.Sheet, rowErr.Row, rowErr.Message)
		}
		_ = w.Flush()
	}

	if len(result.NewAccounts) > 0 {
		fmt.Printf("\nnew accounts (temporary passwords are shown once):\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tTEMPORARY PASSWORD")
		for _, cred := range result.NewAccounts {
			fmt.Fprintf(w, "%s\t%s\n", cred.Email, cred.TempPassword)
		}
		_ = w.Flush()
	}

	if len(result.RowErrors) > 0 {
		os.Exit(1)
	}
}
