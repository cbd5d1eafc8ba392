package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// StaticSource реализует Source поверх заранее загруженного JSON.
type StaticSource struct {
	courses  map[string]*Course
	lectures map[string]*Lecture
	mu       sync.RWMutex
}

// NewStaticSource создаёт пустой StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		courses:  make(map[string]*Course),
		lectures: make(map[string]*Lecture),
	}
}

// LoadFile читает файл с контентом и загружает его.
func LoadFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}

	src := NewStaticSource()
	if err = src.Load(data); err != nil {
		return nil, err
	}

	return src, nil
}

// Load парсит JSON вида {"courses": [...], "lectures": [...]} и добавляет контент.
func (s *StaticSource) Load(data []byte) error {
	var bundle struct {
		Courses  []Course  `json:"courses"`
		Lectures []Lecture `json:"lectures"`
	}

	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("cannot load content, %w", err)
	}

	for i := range bundle.Courses {
		if err := s.AddCourse(bundle.Courses[i]); err != nil {
			return err
		}
	}

	for i := range bundle.Lectures {
		if err := s.AddLecture(bundle.Lectures[i]); err != nil {
			return err
		}
	}

	return nil
}

// AddCourse проверяет и добавляет курс.
func (s *StaticSource) AddCourse(course Course) error {
	if err := validateCourse(&course); err != nil {
		return fmt.Errorf("cannot load course, %w", err)
	}

	s.mu.Lock()
	s.courses[course.ID] = &course
	s.mu.Unlock()

	return nil
}

// AddLecture проверяет и добавляет лекцию.
func (s *StaticSource) AddLecture(lecture Lecture) error {
	if err := validateLecture(&lecture); err != nil {
		return fmt.Errorf("cannot load lecture, %w", err)
	}

	s.mu.Lock()
	s.lectures[lecture.ID] = &lecture
	s.mu.Unlock()

	return nil
}

// Course возвращает копию курса по ID.
func (s *StaticSource) Course(_ context.Context, id string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	course, ok := s.courses[id]
	if !ok {
		return nil, fmt.Errorf("%w: course %s", ErrNotFound, id)
	}

	c := *course
	c.LectureIDs = append([]string(nil), course.LectureIDs...)

	return &c, nil
}

// Lecture возвращает копию лекции по ID.
func (s *StaticSource) Lecture(_ context.Context, id string) (*Lecture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lecture, ok := s.lectures[id]
	if !ok {
		return nil, fmt.Errorf("%w: lecture %s", ErrNotFound, id)
	}

	l := *lecture
	l.Questions = append([]Question(nil), lecture.Questions...)

	return &l, nil
}
