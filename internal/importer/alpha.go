package importer

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/ironlog/internal/models"
)

var (
	// "Session Name";"2026-02-19 4:54 h";"1:02 hr"
	sessionHeaderRe = regexp.MustCompile(`^"(.+)";"(\d{4}-\d{2}-\d{2}\s+\d+:\d+)\s+h";"(.+)"$`)

	// "1. Exercise Name · Equipment · 8 reps[· modifiers]"[;"warmup info"]
	exerciseHeaderRe = regexp.MustCompile(`^"(\d+)\.\s+(.+?)(?:\s+·\s+(\S.*?))?\s+·\s+(\d+)\s+reps(.*?)"(?:;"(.+)")?$`)

	// 1;115;8;1
	setDataRe = regexp.MustCompile(`^(\d+);(.+);(\d+);(.+)$`)

	// WU1 · 37,5 kg · 9 reps
	warmupRe = regexp.MustCompile(`WU(\d+)\s+·\s+(.+?)\s+kg\s+·\s+(\d+)\s+reps`)

	columnHeaderRe = regexp.MustCompile(`^#;KG;REPS;RIR$`)
)

// loggedSession is one workout of an Alpha Progression CSV export.
type loggedSession struct {
	Name      string
	Date      time.Time
	Duration  string
	Exercises []loggedExercise
}

type loggedExercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Sets       []loggedSet
}

type loggedSet struct {
	Number           int
	WeightKg         float64
	IsBodyweightPlus bool
	Reps             int
	RIR              float64
	IsWarmup         bool
}

// workingSets counts the non-warmup sets.
func (e loggedExercise) workingSets() int {
	n := 0
	for _, s := range e.Sets {
		if !s.IsWarmup {
			n++
		}
	}
	return n
}

// parseAlpha reads an Alpha Progression CSV export.
func parseAlpha(r io.Reader) ([]loggedSession, error) {
	scanner := bufio.NewScanner(r)
	var sessions []loggedSession
	var current *loggedSession
	var exercise *loggedExercise

	flushExercise := func() {
		if current != nil && exercise != nil {
			current.Exercises = append(current.Exercises, *exercise)
		}
		exercise = nil
	}
	flushSession := func() {
		flushExercise()
		if current != nil {
			sessions = append(sessions, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Blank line = session boundary
		if line == "" {
			flushSession()
			continue
		}
		if columnHeaderRe.MatchString(line) {
			continue
		}

		if m := sessionHeaderRe.FindStringSubmatch(line); m != nil {
			flushSession()
			date, err := parseSessionDate(m[2])
			if err != nil {
				return nil, fmt.Errorf("parsing session date %q: %w", m[2], err)
			}
			current = &loggedSession{Name: m[1], Date: date, Duration: m[3]}
			continue
		}

		if m := exerciseHeaderRe.FindStringSubmatch(line); m != nil {
			if current == nil {
				return nil, fmt.Errorf("exercise without session: %q", line)
			}
			flushExercise()
			num, _ := strconv.Atoi(m[1])
			targetReps, _ := strconv.Atoi(m[4])
			exercise = &loggedExercise{
				Number:     num,
				Name:       strings.TrimSpace(m[2]),
				Equipment:  strings.TrimSpace(m[3]),
				TargetReps: targetReps,
			}
			if m[6] != "" {
				exercise.Sets = append(exercise.Sets, parseWarmups(m[6])...)
			}
			continue
		}

		if m := setDataRe.FindStringSubmatch(line); m != nil {
			if exercise == nil {
				return nil, fmt.Errorf("set data without exercise: %q", line)
			}
			setNum, _ := strconv.Atoi(m[1])
			weight, isBW := parseWeight(m[2])
			reps, _ := strconv.Atoi(m[3])
			exercise.Sets = append(exercise.Sets, loggedSet{
				Number:           setNum,
				WeightKg:         weight,
				IsBodyweightPlus: isBW,
				Reps:             reps,
				RIR:              parseEuropeanFloat(m[4]),
			})
			continue
		}

		// notes and other metadata
	}

	flushSession()
	return sessions, scanner.Err()
}

// parseSessionDate parses "2026-02-19 4:54".
func parseSessionDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 3:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// parseWarmups extracts warmup sets from e.g.
// "WU1 · 37,5 kg · 9 reps<br>WU2 · 72,5 kg · 7 reps".
func parseWarmups(s string) []loggedSet {
	var sets []loggedSet
	for _, part := range strings.Split(s, "<br>") {
		m := warmupRe.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		weight, isBW := parseWeight(m[2])
		reps, _ := strconv.Atoi(m[3])
		sets = append(sets, loggedSet{
			Number:           num,
			WeightKg:         weight,
			IsBodyweightPlus: isBW,
			Reps:             reps,
			IsWarmup:         true,
		})
	}
	return sets
}

// parseWeight handles European decimals and bodyweight-plus notation.
// "+35" -> (35, true), "102,5" -> (102.5, false)
func parseWeight(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		return parseEuropeanFloat(rest), true
	}
	return parseEuropeanFloat(s), false
}

func parseEuropeanFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// templatesFrom turns logged sessions into templates. Sessions sharing a
// name collapse into one template built from the most recent of them.
// resolve maps an exercise name and equipment to a catalog id.
func templatesFrom(sessions []loggedSession, owner *uuid.UUID, resolve func(name, equipment string) uuid.UUID) []models.TemplateDetail {
	latest := map[string]loggedSession{}
	for _, s := range sessions {
		if prev, ok := latest[s.Name]; !ok || s.Date.After(prev.Date) {
			latest[s.Name] = s
		}
	}
	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.TemplateDetail, 0, len(names))
	for _, name := range names {
		s := latest[name]
		exercises := append([]loggedExercise(nil), s.Exercises...)
		sort.SliceStable(exercises, func(i, j int) bool { return exercises[i].Number < exercises[j].Number })

		t := models.TemplateDetail{
			WorkoutTemplate: models.WorkoutTemplate{
				Name:        name,
				Description: "Imported from Alpha Progression, " + s.Date.Format("2006-01-02"),
				Category:    strings.TrimSpace(strings.Split(name, "·")[0]),
				IsPublic:    owner == nil,
				UserID:      owner,
			},
		}
		for i, ex := range exercises {
			te := models.TemplateExercise{
				ExerciseID: resolve(ex.Name, ex.Equipment),
				OrderIndex: i,
				TargetSets: ex.workingSets(),
			}
			if ex.TargetReps > 0 {
				reps := ex.TargetReps
				te.TargetReps = &reps
			}
			t.Exercises = append(t.Exercises, te)
		}
		out = append(out, t)
	}
	return out
}
