package utils

import (
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
}

func GenerateRandomChineseName(rng *rand.Rand) string {
	name := commonSurnames[rng.Intn(len(commonSurnames))]
	for i := rng.Intn(2) + 1; i > 0; i-- {
		name += commonNameCharacters[rng.Intn(len(commonNameCharacters))]
	}
	return name
}

const digits = "0123456789"

// GenerateUsernameFromChineseName 取每个字拼音的前缀，再加上 1 到 3 位数字
func GenerateUsernameFromChineseName(rng *rand.Rand, chineseName string) string {
	username := ""
	for _, py := range pinyin.LazyConvert(chineseName, nil) {
		username += py[:rng.Intn(len(py))+1]
	}
	for i := rng.Intn(3) + 1; i > 0; i-- {
		username += string(digits[rng.Intn(len(digits))])
	}
	return username
}

// GenerateRandomCoordinator 生成一个随机的排班协调员账号，用于开发环境
func GenerateRandomCoordinator(rng *rand.Rand, password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName(rng)
	username := GenerateUsernameFromChineseName(rng, fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         domain.RoleCoordinator,
	}, nil
}
