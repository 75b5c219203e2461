package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateBook(t *testing.T) {
	pastDate := time.Date(1815, time.December, 23, 0, 0, 0, 0, time.UTC)
	futureDate := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name    string
		book    *Book
		wantErr error
	}{
		{
			name:    "valid book",
			book:    &Book{Title: "Emma", Author: "Jane Austen", ReleaseDate: pastDate, Content: "Emma Woodhouse"},
			wantErr: nil,
		},
		{
			name:    "valid book without author or date",
			book:    &Book{Title: "Anonymous", Content: "text"},
			wantErr: nil,
		},
		{
			name:    "nil book",
			book:    nil,
			wantErr: ErrInvalidBook,
		},
		{
			name:    "blank title",
			book:    &Book{Title: "   ", Content: "text"},
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "empty content",
			book:    &Book{Title: "Emma"},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "future release date",
			book:    &Book{Title: "Emma", Content: "text", ReleaseDate: futureDate},
			wantErr: ErrInvalidReleaseDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBook(tt.book)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateBook() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBook() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidBook) {
				t.Errorf("ValidateBook() error = %v, should wrap ErrInvalidBook", err)
			}
		})
	}
}
