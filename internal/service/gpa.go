package service

import (
	"math"
	"strings"

	"github.com/noah-isme/uni-portal/internal/models"
)

var letterGradePoints = map[string]float64{
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"F":  0.0,
}

// GradePoints resolves the points earned by a registration. Explicit points win over the letter.
func GradePoints(reg models.Registration) (float64, bool) {
	if reg.GradePoints != nil {
		return *reg.GradePoints, true
	}
	points, ok := letterGradePoints[strings.ToUpper(strings.TrimSpace(reg.Grade))]
	return points, ok
}

// ComputeGPA returns the credit-weighted mean over completed or failed registrations that
// carry a grade, rounded to two decimals. Registrations without credits weigh 1.
func ComputeGPA(regs []models.Registration) float64 {
	var points, weight float64
	for _, reg := range regs {
		if reg.Status != models.RegistrationCompleted && reg.Status != models.RegistrationFailed {
			continue
		}
		gp, ok := GradePoints(reg)
		if !ok {
			continue
		}
		credits := 1.0
		if reg.Course != nil && reg.Course.Credits > 0 {
			credits = float64(reg.Course.Credits)
		}
		points += gp * credits
		weight += credits
	}
	if weight == 0 {
		return 0
	}
	return math.Round(points/weight*100) / 100
}
