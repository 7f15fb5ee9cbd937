// Package cli runs the interactive intake and question loop in a terminal.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

const incomeOptions = "Wages/Salary, Scholarship/Fellowship, Stipend, On-campus job, OPT/CPT, None"

type Session struct {
	in       *bufio.Reader
	out      io.Writer
	advisor  ports.Advisor
	feedback ports.FeedbackService

	heading *color.Color
	prompt  *color.Color
	warn    *color.Color
	muted   *color.Color
}

// NewSession reads answers from in and writes to out. feedback may be nil.
func NewSession(in io.Reader, out io.Writer, advisor ports.Advisor, feedback ports.FeedbackService, colorize bool) *Session {
	s := &Session{
		in:       bufio.NewReader(in),
		out:      out,
		advisor:  advisor,
		feedback: feedback,
		heading:  color.New(color.FgCyan, color.Bold),
		prompt:   color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
		muted:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{s.heading, s.prompt, s.warn, s.muted} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// Intake asks the profile questions. Blank answers take the defaults; a
// profile loaded earlier can be passed as base to offer its values instead.
func (s *Session) Intake(base *domain.StudentProfile) (domain.StudentProfile, error) {
	def := domain.DefaultProfile()
	if base != nil {
		def = base.WithDefaults()
	}

	s.heading.Fprintln(s.out, "\n=== International Student Tax Advisor ===")
	fmt.Fprintln(s.out, "I'll ask a few questions to give you the right tax advice.")

	var p domain.StudentProfile
	var err error
	if p.VisaType, err = s.ask("1. What is your visa type? (F-1 / J-1 / M-1 / Other)", def.VisaType); err != nil {
		return p, err
	}
	if p.HomeCountry, err = s.ask("2. What is your home country?", def.HomeCountry); err != nil {
		return p, err
	}
	if p.FirstEntryYear, err = s.ask("3. What year did you first enter the U.S.?", def.FirstEntryYear); err != nil {
		return p, err
	}
	if p.TaxYear, err = s.ask("4. What tax year are you filing for?", def.TaxYear); err != nil {
		return p, err
	}
	fmt.Fprintln(s.out, "5. What types of income did you have? (comma-separated)")
	s.muted.Fprintf(s.out, "   Options: %s\n", incomeOptions)
	income, err := s.ask("   Your answer", strings.Join(def.IncomeTypes, ", "))
	if err != nil {
		return p, err
	}
	p.IncomeTypes = splitList(income)
	if p.State, err = s.ask("6. What U.S. state do you live in?", def.State); err != nil {
		return p, err
	}
	ssnDefault := "no"
	if def.HasSSNOrITIN {
		ssnDefault = "yes"
	}
	ssn, err := s.ask("7. Do you have an SSN or ITIN? (yes/no)", ssnDefault)
	if err != nil {
		return p, err
	}
	p.HasSSNOrITIN = isYes(ssn)
	p.ID = def.ID
	return p.WithDefaults(), nil
}

// Loop answers questions until the user quits, sends an empty line or input
// ends.
func (s *Session) Loop(ctx context.Context, profile domain.StudentProfile) error {
	s.heading.Fprintln(s.out, "\n=== Ready! Ask your tax questions (type 'quit' to exit) ===")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		question, err := s.readLine("\nYour question: ")
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if isQuit(question) {
			fmt.Fprintln(s.out, "Goodbye! Remember: consult a tax professional for specific advice.")
			return nil
		}

		s.muted.Fprintln(s.out, "Searching tax documents...")
		answer, askErr := s.advisor.Ask(ctx, profile, question)
		if askErr != nil {
			if domain.IsRetryable(askErr) {
				s.warn.Fprintln(s.out, "The reference search is unavailable right now. Please try again in a moment.")
				continue
			}
			return askErr
		}
		s.Render(answer)

		if answer.Outcome == domain.OutcomeAnswered && s.feedback != nil {
			if err := s.collectFeedback(ctx, question, answer.Text); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func (s *Session) Render(answer *domain.Answer) {
	if answer.Outcome != domain.OutcomeAnswered {
		s.warn.Fprintf(s.out, "\n%s\n", answer.Text)
		return
	}
	if answer.UsedFallback {
		s.warn.Fprintln(s.out, "\n(answer generator unavailable, showing source passages)")
	}
	fmt.Fprintf(s.out, "\n%s\n", answer.Text)
	if len(answer.Sources) > 0 {
		s.heading.Fprintln(s.out, "\nSources:")
		for _, c := range answer.Sources {
			fmt.Fprintf(s.out, "  %s [%s, %d]\n", c.Citation(), c.Metadata.DocID, c.Metadata.PageNumber)
		}
	}
	s.muted.Fprintf(s.out, "confidence %.2f | retrieval %s | total %s\n",
		answer.Confidence, answer.Latency.Retrieval.Round(time.Millisecond), answer.Latency.Total.Round(time.Millisecond))
	fmt.Fprintln(s.out, strings.Repeat("-", 60))
}

func (s *Session) collectFeedback(ctx context.Context, question, answer string) error {
	reply, err := s.readLine("Was this helpful? (y/n, Enter to skip): ")
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	reply = strings.ToLower(strings.TrimSpace(reply))
	if reply == "" {
		return nil
	}
	if err := s.feedback.Submit(ctx, question, answer, isYes(reply)); err != nil {
		s.warn.Fprintf(s.out, "Could not save feedback: %v\n", err)
		return nil
	}
	s.muted.Fprintln(s.out, "Thanks for the feedback.")
	return nil
}

func (s *Session) ask(question, def string) (string, error) {
	line, err := s.readLine(fmt.Sprintf("%s [%s]: ", question, def))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (s *Session) readLine(prompt string) (string, error) {
	s.prompt.Fprint(s.out, prompt)
	line, err := s.in.ReadString('\n')
	return strings.TrimSpace(line), err
}

func isQuit(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quit", "exit", "q":
		return true
	default:
		return false
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
