package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptAnswersKey returns the cache key mirroring an attempt's answer map
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptViolationCountKey returns the cache key for an attempt's violation counter
func (r *CacheKeyStruct) AttemptViolationCountKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:violations", attemptID)
}

// ExamPaperKey returns the cache key for an exam's student-facing paper
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// ExamAnswerKeyKey returns the cache key for an exam's grading key
func (r *CacheKeyStruct) ExamAnswerKeyKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// StudentActiveAttemptKey returns the cache key for a student's in-progress attempt
func (r *CacheKeyStruct) StudentActiveAttemptKey(userID int) string {
	return fmt.Sprintf("student:%d:active_attempt", userID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
