package models

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Admin is a locally managed operator account. Deployments backed by Supabase
// Auth never create rows here; the bearer tokens carry the identity instead.
type Admin struct {
	Id       string `json:"id" gorm:"primaryKey;size:36"`
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique;not null"`
	Role     string `json:"role" gorm:"size:32;not null"`
	Password []byte `json:"-" gorm:"not null"`
}

func (admin *Admin) BeforeCreate(tx *gorm.DB) (err error) {
	if admin.Id == "" {
		admin.Id = uuid.NewString()
	}
	return
}

func (admin *Admin) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	admin.Password = hashedPassword
	return nil
}

func (admin *Admin) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(admin.Password, []byte(password))
}
