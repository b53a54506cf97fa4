package models

import "time"

type User struct {
	ID               string    `db:"id" json:"id"`
	FullName         string    `db:"full_name" json:"fullName"`
	Email            string    `db:"email" json:"email"`
	ProfilePic       string    `db:"profile_pic" json:"profilePic"`
	NativeLanguage   string    `db:"native_language" json:"nativeLanguage"`
	LearningLanguage string    `db:"learning_language" json:"learningLanguage"`
	Bio              string    `db:"bio" json:"bio"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

type ProfileUpdate struct {
	FullName         string
	Bio              string
	NativeLanguage   string
	LearningLanguage string
}

type ProfileStats struct {
	FriendsCount    int `json:"friendsCount"`
	PendingRequests int `json:"pendingRequests"`
	TotalChats      int `json:"totalChats"`
	TotalCalls      int `json:"totalCalls"`
}
