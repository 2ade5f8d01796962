package application

import "github.com/google/uuid"

func defaultIDGenerator() string {
	return uuid.NewString()
}
